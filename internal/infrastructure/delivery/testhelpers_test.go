package delivery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/sandbox"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script in a temp dir
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

type fakeSurface struct {
	jobID   string
	kind    printing.DocumentKind
	payload string
	pdf     []byte
	png     []byte
	err     error

	pdfOpts  sandbox.PDFOptions
	selector string
}

func (f *fakeSurface) JobID() string               { return f.jobID }
func (f *fakeSurface) Kind() printing.DocumentKind { return f.kind }
func (f *fakeSurface) Payload() string             { return f.payload }

func (f *fakeSurface) PrintPDF(_ context.Context, opts sandbox.PDFOptions) ([]byte, error) {
	f.pdfOpts = opts
	return f.pdf, f.err
}

func (f *fakeSurface) Capture(_ context.Context, selector string) ([]byte, error) {
	f.selector = selector
	return f.png, f.err
}

type fakeSender struct {
	paths []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}
