// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/rivalry-research/internal/httputil"
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

// errNoPDFText reports a PDF without an extractable text layer, such as a
// scanned document.
var errNoPDFText = errors.New("PDF has no extractable text")

// PDFText extracts the plain text of every page of a PDF document.
func PDFText(data []byte) (text string, err error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", malformed("not a PDF document")
	}

	// The reader panics on some damaged cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", malformed("reading PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", malformed("opening PDF: %v", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", malformed("extracting PDF text: %v", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}

	text = tidyText(string(raw))
	if text == "" {
		return "", errNoPDFText
	}
	return text, nil
}

// tidyText collapses runs of spaces on each line and squeezes blank lines.
func tidyText(s string) string {
	var (
		b     strings.Builder
		blank bool
	)
	for _, line := range strings.Split(s, "\n") {
		line = collapseSpace(line)
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if blank {
			b.WriteString("\n")
			blank = false
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// attachPDF downloads the paper at pdfURL. On success the PDF becomes the
// candidate's original and its text is appended to the rendering. On
// failure the candidate is left untouched, so its abstract stands in.
func attachPDF(ctx context.Context, client *httputil.Client, c *Candidate, pdfURL string) error {
	body, err := client.Get(ctx, pdfURL, nil)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", pdfURL, err)
	}
	text, err := PDFText(body)
	if err != nil {
		return fmt.Errorf("%s: %w", pdfURL, err)
	}

	c.Original = body
	c.OriginalExt = "pdf"
	c.Content = append(c.Content, "\n## Full Text\n\n"+text+"\n"...)
	return nil
}

// attachPDFs runs attachPDF for every candidate with a PDF link, logging
// and skipping failures. It stops early once ctx is done.
func attachPDFs(ctx context.Context, client *httputil.Client, cands []Candidate, links []string) {
	for i := range cands {
		if links[i] == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := attachPDF(ctx, client, &cands[i], links[i]); err != nil {
			client.Logger.Warn().Err(err).Str("url", cands[i].Source.URL).
				Msg("full text unavailable, keeping abstract")
		}
	}
}
