// Package epubtest writes small EPUB files for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Book describes a fixture. Chapters hold XHTML body markup.
type Book struct {
	Title     string
	Creator   string
	Language  string
	Publisher string
	Chapters  []string
}

// Write creates dir/name as an EPUB and returns its path.
func Write(t testing.TB, dir, name string, b Book) string {
	t.Helper()

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("write mimetype: %v", err)
	}
	mt.Write([]byte("application/epub+zip"))

	add := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	add("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for i, body := range b.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		href := fmt.Sprintf("text/%s.xhtml", id)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, href)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		add("OEBPS/"+href, fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>%s</title></head><body>%s</body></html>`, id, body))
	}

	var md strings.Builder
	if b.Title != "" {
		fmt.Fprintf(&md, "    <dc:title>%s</dc:title>\n", b.Title)
	}
	if b.Creator != "" {
		fmt.Fprintf(&md, "    <dc:creator opf:role=\"aut\">%s</dc:creator>\n", b.Creator)
	}
	if b.Language != "" {
		fmt.Fprintf(&md, "    <dc:language>%s</dc:language>\n", b.Language)
	}
	if b.Publisher != "" {
		fmt.Fprintf(&md, "    <dc:publisher>%s</dc:publisher>\n", b.Publisher)
	}

	add("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf" version="2.0">
  <metadata>
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`, md.String(), manifest.String(), spine.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return p
}

// WriteCorrupt creates dir/name with bytes that are not a zip archive.
func WriteCorrupt(t testing.TB, dir, name string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("this is not an epub"), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
