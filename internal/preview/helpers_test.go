package preview

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/JakeFAU/pet-preview/internal/imagefetch"
	"github.com/JakeFAU/pet-preview/internal/pet"
)

const bellaID = "3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b"

func strPtr(s string) *string { return &s }

type storeFunc func(ctx context.Context, id string) (pet.Pet, error)

func (f storeFunc) GetPet(ctx context.Context, id string) (pet.Pet, error) { return f(ctx, id) }

// blockingStore never answers until release is closed, ignoring context cancellation.
type blockingStore struct {
	release chan struct{}
}

func newBlockingStore(t *testing.T) *blockingStore {
	t.Helper()
	s := &blockingStore{release: make(chan struct{})}
	t.Cleanup(func() { close(s.release) })
	return s
}

func (s *blockingStore) GetPet(context.Context, string) (pet.Pet, error) {
	<-s.release
	return pet.Pet{}, pet.ErrNotFound
}

type fakeSource struct {
	data        []byte
	contentType string
	size        int64
	err         error
	opened      []string
}

func (f *fakeSource) Open(_ context.Context, rawURL string) (imagefetch.Image, error) {
	f.opened = append(f.opened, rawURL)
	if f.err != nil {
		return imagefetch.Image{}, f.err
	}
	size := f.size
	if size == 0 {
		size = int64(len(f.data))
	}
	return imagefetch.Image{
		Body:        io.NopCloser(bytes.NewReader(f.data)),
		ContentType: f.contentType,
		Size:        size,
	}, nil
}

// metaContent parses doc and returns the content of every <meta> keyed by its property or name.
func metaContent(t *testing.T, doc []byte) map[string]string {
	t.Helper()
	root, err := html.Parse(bytes.NewReader(doc))
	require.NoError(t, err)

	out := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, a := range n.Attr {
				switch a.Key {
				case "property", "name":
					key = a.Val
				case "content":
					content = a.Val
				}
			}
			if key != "" {
				out[key] = content
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// countElements counts elements named tag in doc.
func countElements(t *testing.T, doc []byte, tag string) int {
	t.Helper()
	z := html.NewTokenizer(bytes.NewReader(doc))
	n := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			require.ErrorIs(t, z.Err(), io.EOF)
			return n
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if strings.EqualFold(string(name), tag) {
				n++
			}
		}
	}
}
