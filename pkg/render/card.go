package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fogleman/gg"
)

// CommitCard is the summary block drawn when a commit has no renderable
// file pages, so every commit still contributes at least one image.
type CommitCard struct {
	Hash         string
	Author       string
	Email        string
	Date         string
	Message      string
	FilesChanged int
	Added        int
	Removed      int
}

const (
	cardPadX       = 24
	cardLineHeight = 22
	cardMinHeight  = 160
)

// RenderCommitCard draws a single-page commit summary card.
func (r *Renderer) RenderCommitCard(card CommitCard) (RenderedPage, error) {
	lines := cardLines(card)

	height := 2*cardLineHeight + len(lines)*cardLineHeight + cardLineHeight
	if height < cardMinHeight {
		height = cardMinHeight
	}

	width := r.opts.Width

	dc := gg.NewContext(width, height)
	dc.SetFontFace(r.face)

	dc.SetHexColor(colorPageBG)
	dc.Clear()

	dc.SetHexColor(colorHeaderBG)
	dc.DrawRectangle(0, 0, float64(width), headerHeight)
	dc.Fill()

	dc.SetHexColor(colorBorder)
	dc.DrawRectangle(0.5, 0.5, float64(width)-1, float64(height)-1)
	dc.Stroke()

	dc.SetHexColor(colorHeaderText)
	dc.DrawString(r.clip("commit "+card.Hash, width-2*cardPadX), cardPadX, headerHeight/2+fontSize/2)

	dc.SetHexColor(colorCodeText)

	for i, text := range lines {
		y := float64(headerHeight + (i+1)*cardLineHeight)
		dc.DrawString(r.clip(text, width-2*cardPadX), cardPadX, y)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return RenderedPage{}, fmt.Errorf("encode commit card %s: %w", card.Hash, err)
	}

	return RenderedPage{
		FilePath:  "",
		PageIndex: 1,
		Image:     buf.Bytes(),
		Width:     width,
		Height:    height,
	}, nil
}

func cardLines(card CommitCard) []string {
	author := card.Author
	if card.Email != "" {
		author += " <" + card.Email + ">"
	}

	lines := []string{
		"Author: " + author,
		"Date:   " + card.Date,
		"",
	}

	subject, _, _ := strings.Cut(card.Message, "\n")
	lines = append(lines, "    "+subject, "")

	lines = append(lines, fmt.Sprintf("%d files changed, %d insertions(+), %d deletions(-)",
		card.FilesChanged, card.Added, card.Removed))

	return lines
}
