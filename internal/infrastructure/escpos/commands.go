// Package escpos encodes receipt documents into ESC/POS byte streams for
// thermal printers.
package escpos

// ESC/POS control bytes
const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

// Alignment is the ESC a argument
type Alignment byte

const (
	AlignLeft   Alignment = 0
	AlignCenter Alignment = 1
	AlignRight  Alignment = 2
)

// QR error correction levels for GS ( k function 169
const (
	QRErrorLow      byte = 0x30
	QRErrorMedium   byte = 0x31
	QRErrorQuartile byte = 0x32
	QRErrorHigh     byte = 0x33
)

// QRMaxPayload is the largest payload the two-byte length prefix can frame
const QRMaxPayload = 0xFFFF - 3

// Init resets the printer to its power-on formatting (ESC @).
func Init() []byte {
	return []byte{ESC, '@'}
}

// Bold toggles emphasized mode (ESC E n).
func Bold(on bool) []byte {
	if on {
		return []byte{ESC, 'E', 0x01}
	}
	return []byte{ESC, 'E', 0x00}
}

// Align sets justification (ESC a n).
func Align(a Alignment) []byte {
	return []byte{ESC, 'a', byte(a)}
}

// LineFeed prints the buffer and advances one line.
func LineFeed() []byte {
	return []byte{LF}
}

// Feed advances n blank lines.
func Feed(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = LF
	}
	return out
}

// FullCut cuts the paper completely (GS V 0).
func FullCut() []byte {
	return []byte{GS, 'V', 0x00}
}

// QRModuleSize sets the QR module size in dots, clamped to 1..16.
func QRModuleSize(n byte) []byte {
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return []byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x43, n}
}

// QRErrorCorrection selects the QR error correction level.
func QRErrorCorrection(level byte) []byte {
	if level < QRErrorLow || level > QRErrorHigh {
		level = QRErrorMedium
	}
	return []byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x45, level}
}

// QRLengthPrefix returns the pL, pH pair that frames a store command for
// a payload of length l.
func QRLengthPrefix(l int) (pL, pH byte) {
	n := l + 3
	return byte(n % 256), byte(n / 256)
}

// QRStore stores data in the symbol storage area. The second return is
// false when data is too long to frame.
func QRStore(data []byte) ([]byte, bool) {
	if len(data) > QRMaxPayload {
		return nil, false
	}
	pL, pH := QRLengthPrefix(len(data))
	out := make([]byte, 0, 8+len(data))
	out = append(out, GS, '(', 'k', pL, pH, 0x31, 0x50, 0x30)
	out = append(out, data...)
	return out, true
}

// QRPrint prints the stored symbol.
func QRPrint() []byte {
	return []byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x51, 0x30}
}
