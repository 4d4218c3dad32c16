// Package wheels finds prebuilt flash-attention wheels matching the Python,
// CUDA and PyTorch versions of a virtual environment.
package wheels

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/anaskhan96/soup"
	"github.com/hashicorp/go-version"

	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/util/files"
)

var flashVersionRe = regexp.MustCompile(`flash_attn-(\d+(?:\.\d+)*(?:\.post\w*)?)`)

// IndexSource says where a wheel list lives.
type IndexSource int

const (
	IndexSourceFile IndexSource = iota
	IndexSourceURL
)

func (s IndexSource) String() string {
	switch s {
	case IndexSourceFile:
		return "file"
	case IndexSourceURL:
		return "url"
	default:
		return "unknown"
	}
}

// Index is a wheel list: a newline-separated list of URLs or an HTML page of links.
type Index struct {
	Source IndexSource
	// URL is set when Source is IndexSourceURL
	URL string
	// Path is set when Source is IndexSourceFile
	Path string
}

// ParseIndex parses an index argument. Anything that is not an http(s) URL is
// a file path, resolved against dir.
func ParseIndex(value string, dir string) (*Index, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty wheel index")
	}
	if strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://") {
		return &Index{Source: IndexSourceURL, URL: value}, nil
	}
	path, err := files.ResolvePath(dir, value)
	if err != nil {
		return nil, err
	}
	return &Index{Source: IndexSourceFile, Path: path}, nil
}

func (i *Index) String() string {
	if i.Source == IndexSourceURL {
		return i.URL
	}
	return i.Path
}

// Read fetches the index and parses its wheels.
func (i *Index) Read() ([]Wheel, error) {
	switch i.Source {
	case IndexSourceURL:
		resp, err := soup.Get(i.URL)
		if err != nil {
			return nil, fmt.Errorf("Failed to download %s: %w", i.URL, err)
		}
		return ParseWheels(resp, i.URL), nil
	default:
		data, err := os.ReadFile(i.Path)
		if err != nil {
			return nil, fmt.Errorf("Failed to read wheel index: %w", err)
		}
		return ParseWheels(string(data), ""), nil
	}
}

// Wheel is a flash-attention wheel with a parseable version.
type Wheel struct {
	URL      string
	Filename string
	Version  *version.Version
}

// ParseWheels extracts wheels from a URL list or an HTML index. Relative links
// are resolved against base. Entries without a flash_attn version are ignored
// and unparseable versions are skipped with a warning.
func ParseWheels(content string, base string) []Wheel {
	var links []string
	if looksLikeHTML(content) {
		links = htmlLinks(content, base)
	} else {
		for _, line := range strings.Split(content, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				links = append(links, line)
			}
		}
	}

	wheels := []Wheel{}
	for _, link := range links {
		filename := link[strings.LastIndex(link, "/")+1:]
		m := flashVersionRe.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		v, err := parseFlashVersion(m[1])
		if err != nil {
			console.Warnf("Skipping %s: %s", filename, err)
			continue
		}
		wheels = append(wheels, Wheel{URL: link, Filename: filename, Version: v})
	}
	return wheels
}

// parseFlashVersion turns "2.7.0.post2" into 2.7.0.2 so post releases sort
// above their base release.
func parseFlashVersion(s string) (*version.Version, error) {
	main, post, hasPost := strings.Cut(s, ".post")
	var parts []string
	for _, p := range strings.Split(main, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty version %q", s)
	}
	if hasPost {
		for _, c := range post {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("non-numeric post-release tag in %q", s)
			}
		}
		if post == "" {
			return nil, fmt.Errorf("empty post-release tag in %q", s)
		}
		parts = append(parts, post)
	}
	return version.NewVersion(strings.Join(parts, "."))
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<a ") || strings.Contains(lower, "<html")
}

func htmlLinks(content string, base string) []string {
	var baseURL *url.URL
	if base != "" {
		baseURL, _ = url.Parse(base)
	}

	doc := soup.HTMLParse(content)
	var links []string
	for _, a := range doc.FindAll("a") {
		href := strings.TrimSpace(a.Attrs()["href"])
		if href == "" {
			continue
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		links = append(links, href)
	}
	return links
}

// Sort orders wheels newest first. Equal versions keep their index order.
func Sort(wheels []Wheel) {
	sort.SliceStable(wheels, func(i, j int) bool {
		return wheels[i].Version.GreaterThan(wheels[j].Version)
	})
}

// Match returns the newest wheel whose filename names the Python tag (cp312),
// the CUDA tag (cu128) and the torch series (torch2.7).
func Match(wheels []Wheel, pythonTag string, cudaTag string, torchSeries string) (Wheel, bool) {
	sorted := make([]Wheel, len(wheels))
	copy(sorted, wheels)
	Sort(sorted)

	torchPattern := "torch" + torchSeries
	for _, w := range sorted {
		if strings.Contains(w.Filename, pythonTag) && strings.Contains(w.Filename, cudaTag) && strings.Contains(w.Filename, torchPattern) {
			return w, true
		}
	}
	return Wheel{}, false
}

// TorchSeries reduces a torch.__version__ such as "2.4.0+cu121" or
// "2.1.0a0+git5f3d" to its major.minor series.
func TorchSeries(torchVersion string) (string, error) {
	v, err := version.NewVersion(strings.TrimSpace(torchVersion))
	if err != nil {
		return "", fmt.Errorf("Invalid torch version %q: %w", torchVersion, err)
	}
	segments := v.Segments()
	return fmt.Sprintf("%d.%d", segments[0], segments[1]), nil
}
