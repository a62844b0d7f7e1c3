// Package epub reads EPUB containers into metadata and plain-text sections.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

var ErrInvalidEPUB = errors.New("invalid epub")

const containerPath = "META-INF/container.xml"

// Info is the raw OPF metadata of a book.
type Info struct {
	Title     string
	Author    string
	Creator   string
	Language  string
	Publisher string
}

// Section is one spine document.
type Section struct {
	ID   string
	Href string
	HTML string
}

// Book is a parsed EPUB.
type Book struct {
	Info     Info
	Sections []Section
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type creator struct {
	Value string `xml:",chardata"`
	Role  string `xml:"role,attr"`
}

type opfPackage struct {
	Metadata struct {
		Titles     []string  `xml:"title"`
		Creators   []creator `xml:"creator"`
		Languages  []string  `xml:"language"`
		Publishers []string  `xml:"publisher"`
	} `xml:"metadata"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// Open parses the EPUB at filePath. Filesystem errors are returned as is so
// callers can match fs.ErrNotExist and fs.ErrPermission.
func Open(filePath string) (*Book, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var c container
	if err := decodeXML(files, containerPath, &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in %s", ErrInvalidEPUB, containerPath)
	}
	opfPath := c.Rootfiles[0].FullPath

	var pkg opfPackage
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return nil, err
	}

	book := &Book{Info: pkg.info()}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}
	base := path.Dir(opfPath)
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		name := resolveHref(base, href)
		f, ok := files[name]
		if !ok {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidEPUB, name, err)
		}
		book.Sections = append(book.Sections, Section{ID: ref.IDRef, Href: href, HTML: string(data)})
	}

	return book, nil
}

func (p *opfPackage) info() Info {
	var info Info
	md := p.Metadata
	if len(md.Titles) > 0 {
		info.Title = strings.TrimSpace(md.Titles[0])
	}
	for _, c := range md.Creators {
		v := strings.TrimSpace(c.Value)
		if info.Creator == "" {
			info.Creator = v
		}
		if info.Author == "" && c.Role == "aut" {
			info.Author = v
		}
	}
	if len(md.Languages) > 0 {
		info.Language = strings.TrimSpace(md.Languages[0])
	}
	if len(md.Publishers) > 0 {
		info.Publisher = strings.TrimSpace(md.Publishers[0])
	}
	return info
}

func resolveHref(base, href string) string {
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if base == "." {
		return path.Clean(href)
	}
	return path.Join(base, href)
}

func decodeXML(files map[string]*zip.File, name string, v interface{}) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalidEPUB, name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidEPUB, name, err)
	}
	defer rc.Close()

	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidEPUB, name, err)
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
