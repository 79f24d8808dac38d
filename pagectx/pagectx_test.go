package pagectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_ProductHandle(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		handle string
	}{
		{
			name:   "plain product page",
			url:    "https://shop.example.com/products/beach-towel",
			handle: "beach-towel",
		},
		{
			name:   "collection prefix with query and fragment",
			url:    "https://shop.example.com/collections/summer-sale/products/beach-towel?variant=1#reviews",
			handle: "beach-towel",
		},
		{
			name:   "non-product page",
			url:    "https://shop.example.com/about",
			handle: "",
		},
		{
			name:   "products segment with nothing after it",
			url:    "https://shop.example.com/products/",
			handle: "",
		},
		{
			name:   "products appearing only as the last segment",
			url:    "https://shop.example.com/collections/products",
			handle: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := Extract(tt.url, "Title")
			assert.Equal(t, tt.handle, pc.ProductHandle)
			assert.Equal(t, tt.url, pc.PageURL)
			assert.Equal(t, "Title", pc.PageTitle)
		})
	}
}

type fakeNav struct {
	pushes, replaces []string
	backs            int
}

func (f *fakeNav) Push(url string)    { f.pushes = append(f.pushes, url) }
func (f *fakeNav) Replace(url string) { f.replaces = append(f.replaces, url) }
func (f *fakeNav) Back()              { f.backs++ }

func TestWrap_ReportsAndDelegates(t *testing.T) {
	inner := &fakeNav{}
	var seen []string
	w := Wrap(inner, func(url string) { seen = append(seen, url) })

	w.Push("/a")
	w.Replace("/b")
	w.Back()

	assert.Equal(t, []string{"/a"}, inner.pushes)
	assert.Equal(t, []string{"/b"}, inner.replaces)
	assert.Equal(t, 1, inner.backs)
	assert.Equal(t, []string{"/a", "/b", ""}, seen)
}

func TestWrap_RestoreSilencesAndIsIdempotent(t *testing.T) {
	inner := &fakeNav{}
	calls := 0
	w := Wrap(inner, func(string) { calls++ })

	w.Push("/a")
	assert.Same(t, inner, w.Restore())
	assert.Same(t, inner, w.Restore())

	// Behavior still delegates, but the callback stays quiet.
	w.Push("/b")
	assert.Equal(t, []string{"/a", "/b"}, inner.pushes)
	assert.Equal(t, 1, calls)
}

func TestHookObserver_SubscribeAndCancel(t *testing.T) {
	h := NewHookObserver()
	var a, b []string
	cancelA := h.Subscribe(func(url string) { a = append(a, url) })
	h.Subscribe(func(url string) { b = append(b, url) })

	h.Notify("/one")
	cancelA()
	cancelA() // idempotent
	h.Notify("/two")

	assert.Equal(t, []string{"/one"}, a)
	assert.Equal(t, []string{"/one", "/two"}, b)
}
