package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Front and back matter that carries no text worth indexing.
var epubIgnore = map[string]bool{
	"titlepage.xhtml":     true,
	"halftitlepage.xhtml": true,
	"imprint.xhtml":       true,
	"colophon.xhtml":      true,
	"copyright.xhtml":     true,
	"uncopyright.xhtml":   true,
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// epubText reads the spine documents of an EPUB in reading order. Without a
// spine every HTML member is read in name order.
func epubText(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening EPUB: %w", err)
	}
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := readXML(files, "META-INF/container.xml", &container); err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 {
		return "", fmt.Errorf("EPUB has no rootfile")
	}
	rootfile := container.Rootfiles[0].FullPath
	var pkg epubPackage
	if err := readXML(files, rootfile, &pkg); err != nil {
		return "", err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}
	var members []string
	for _, ref := range pkg.Spine {
		if href, ok := hrefs[ref.IDRef]; ok {
			members = append(members, path.Join(path.Dir(rootfile), href))
		}
	}
	if len(members) == 0 {
		for name := range files {
			if strings.HasSuffix(name, "html") {
				members = append(members, name)
			}
		}
		sort.Strings(members)
	}

	var parts []string
	for _, name := range members {
		if epubIgnore[strings.ToLower(path.Base(name))] {
			continue
		}
		raw, err := readMember(files, name)
		if err != nil {
			return "", err
		}
		text, err := htmlText(string(raw))
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func readMember(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("EPUB member %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readXML(files map[string]*zip.File, name string, v any) error {
	raw, err := readMember(files, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}
