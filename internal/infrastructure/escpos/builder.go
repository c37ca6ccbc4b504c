package escpos

import (
	"bytes"
)

// Default QR symbol parameters for 80mm receipts
const (
	defaultQRModuleSize = 6
	defaultQRErrorLevel = QRErrorMedium
)

// Builder accumulates an ESC/POS byte stream. Every text method
// sanitizes its input, so the stream only ever carries ASCII outside the
// framed QR store command.
type Builder struct {
	buf   bytes.Buffer
	width int
}

// NewBuilder creates a builder for a printer with the given character width
func NewBuilder(width int) *Builder {
	if width <= 0 {
		width = Width
	}
	return &Builder{width: width}
}

// Width returns the configured character width
func (b *Builder) Width() int {
	return b.width
}

// Raw appends a command verbatim
func (b *Builder) Raw(cmd []byte) *Builder {
	b.buf.Write(cmd)
	return b
}

// Init resets the printer
func (b *Builder) Init() *Builder {
	return b.Raw(Init())
}

// Align sets the justification for following lines
func (b *Builder) Align(a Alignment) *Builder {
	return b.Raw(Align(a))
}

// Bold toggles emphasis for following text
func (b *Builder) Bold(on bool) *Builder {
	return b.Raw(Bold(on))
}

// Text writes a sanitized line followed by a line feed
func (b *Builder) Text(s string) *Builder {
	b.buf.WriteString(Sanitize(s))
	b.buf.WriteByte(LF)
	return b
}

// BoldText writes a single emphasized line
func (b *Builder) BoldText(s string) *Builder {
	return b.Bold(true).Text(s).Bold(false)
}

// Blank writes an empty line
func (b *Builder) Blank() *Builder {
	return b.Raw(LineFeed())
}

// Feed writes n empty lines
func (b *Builder) Feed(n int) *Builder {
	return b.Raw(Feed(n))
}

// Rule writes a full-width dash separator
func (b *Builder) Rule() *Builder {
	b.buf.WriteString(Rule(b.width))
	b.buf.WriteByte(LF)
	return b
}

// Pair writes a label/value pair line, wrapping when it does not fit
func (b *Builder) Pair(left, right string) *Builder {
	for _, line := range Pair(Sanitize(left), Sanitize(right), b.width) {
		b.buf.WriteString(line)
		b.buf.WriteByte(LF)
	}
	return b
}

// BoldPair writes an emphasized pair line
func (b *Builder) BoldPair(left, right string) *Builder {
	return b.Bold(true).Pair(left, right).Bold(false)
}

// QR writes a centered caption followed by a QR symbol for data. Payloads
// too long to frame are skipped along with their caption.
func (b *Builder) QR(caption string, data string) *Builder {
	if !QRFits(data) {
		return b
	}
	store, _ := QRStore([]byte(data))
	b.Align(AlignCenter)
	if caption != "" {
		b.Text(caption)
	}
	b.Raw(QRModuleSize(defaultQRModuleSize))
	b.Raw(QRErrorCorrection(defaultQRErrorLevel))
	b.Raw(store)
	b.Raw(QRPrint())
	return b.Blank()
}

// QRFits reports whether data can be framed as a QR store command
func QRFits(data string) bool {
	return data != "" && len(data) <= QRMaxPayload
}

// Cut feeds the trailing blank lines and cuts the paper
func (b *Builder) Cut() *Builder {
	return b.Feed(3).Raw(FullCut())
}

// Len returns the number of bytes written so far
func (b *Builder) Len() int {
	return b.buf.Len()
}

// Bytes returns a copy of the accumulated stream
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}
