package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestASCIIFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"zpráva.pdf", "zprava.pdf"},
		{"Příliš žluťoučký kůň.docx", "Prilis zlutoucky kun.docx"},
		{"plain.txt", "plain.txt"},
		{"ﬁle.txt", "file.txt"},
		{"отчет.pdf", ".pdf"},
		{"日本語", "attachment"},
		{"", "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ASCIIFilename(tt.in))
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name       string
		hint       string
		filename   string
		want       string
		wantParams map[string]string
	}{
		{name: "well formed hint wins", hint: "application/vnd.ms-excel", filename: "report.pdf", want: "application/vnd.ms-excel"},
		{name: "hint keeps parameters", hint: "text/plain; charset=windows-1250", filename: "a.txt", want: "text/plain", wantParams: map[string]string{"charset": "windows-1250"}},
		{name: "empty hint guesses pdf", hint: "", filename: "report.pdf", want: "application/pdf"},
		{name: "malformed hint guesses pdf", hint: "pdf", filename: "report.pdf", want: "application/pdf"},
		{name: "half hint guesses pdf", hint: "application/", filename: "REPORT.PDF", want: "application/pdf"},
		{name: "unknown extension", hint: "", filename: "data.unknownext", want: "application/octet-stream"},
		{name: "no extension", hint: "", filename: "README", want: "application/octet-stream"},
		{name: "compressed file", hint: "", filename: "archive.tar.gz", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, params := ContentType(tt.hint, tt.filename)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}
