// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text of one parsed PDF.
type PDFParser interface {
	Text() (string, error)
}

// PDFFunc extracts the text of a PDF in a single call.
type PDFFunc func(data []byte) (string, error)

// PDFExtractor holds the PDF backends. When both are set NewParser wins.
type PDFExtractor struct {
	NewParser func(data []byte) (PDFParser, error)
	Parse     PDFFunc
}

// DefaultPDFExtractor returns an extractor backed by github.com/ledongthuc/pdf.
func DefaultPDFExtractor() *PDFExtractor {
	return &PDFExtractor{NewParser: newPlainTextParser}
}

// Extract returns the text of data using the configured backend.
func (e *PDFExtractor) Extract(data []byte) (text string, err error) {
	// Malformed input can panic deep inside PDF parsers
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction panicked: %v", r)
		}
	}()

	switch {
	case e != nil && e.NewParser != nil:
		parser, err := e.NewParser(data)
		if err != nil {
			return "", fmt.Errorf("failed to open pdf: %w", err)
		}
		return parser.Text()
	case e != nil && e.Parse != nil:
		return e.Parse(data)
	default:
		return "", ErrNoPDFBackend
	}
}

type plainTextParser struct {
	reader *pdf.Reader
}

func newPlainTextParser(data []byte) (PDFParser, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &plainTextParser{reader: reader}, nil
}

func (p *plainTextParser) Text() (string, error) {
	r, err := p.reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(b), nil
}
