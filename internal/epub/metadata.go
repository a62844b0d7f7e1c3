package epub

import "github.com/epub-counter/api/internal/model"

const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// ExtractMetadata fills missing title and author with fixed defaults. The
// author falls back to the first creator.
func ExtractMetadata(info *Info) model.EpubMetadata {
	if info == nil {
		return model.EpubMetadata{Title: UnknownTitle, Author: UnknownAuthor}
	}

	md := model.EpubMetadata{
		Title:     info.Title,
		Author:    info.Author,
		Language:  info.Language,
		Publisher: info.Publisher,
	}
	if md.Title == "" {
		md.Title = UnknownTitle
	}
	if md.Author == "" {
		md.Author = info.Creator
	}
	if md.Author == "" {
		md.Author = UnknownAuthor
	}
	return md
}
