package seed

import (
	"fmt"

	"github.com/mediashelf/mediashelf/internal/library"
)

// SampleNodes is the built-in demo library used when no seed file is configured.
func SampleNodes() []Node {
	return []Node{
		{
			Name: "Cakes", Kind: "folder", Description: "Celebration cakes and bakes",
			Children: []Node{
				{Name: "chocolate-layer.jpg", Kind: "image", Size: "2.4 MB", Description: "Three layer chocolate cake"},
				{Name: "lemon-drizzle.jpg", Kind: "image", Size: "1.8 MB"},
				{Name: "recipe-card.pdf", Kind: "document", Size: "0.3 MB", Description: "Printable recipe"},
				{
					Name: "Weddings", Kind: "folder", Description: "Tiered wedding cakes",
					Children: photoSeries("wedding-tier", 14),
				},
			},
		},
		{
			Name: "Podcasts", Kind: "folder", Description: "Kitchen talk episodes",
			Children: []Node{
				{Name: "episode-01.mp3", Kind: "audio", Size: "48.2 MB", Description: "Sourdough basics"},
				{Name: "episode-02.mp3", Kind: "audio", Size: "51.7 MB", Description: "Laminated doughs"},
				{Name: "show-notes.txt", Kind: "document", Size: "0.1 MB"},
			},
		},
		{
			Name: "Videos", Kind: "folder", Description: "Technique clips",
			Children: []Node{
				{Name: "piping-roses.mp4", Kind: "video", Size: "184.0 MB", Description: "Buttercream roses"},
				{Name: "tempering.mov", Kind: "video", Size: "96.5 MB", Description: "Tempering chocolate"},
			},
		},
		{Name: "brand-guidelines.pdf", Kind: "document", Size: "4.2 MB", Description: "Logo and colour usage"},
		{Name: "storefront.png", Kind: "image", Size: "3.1 MB", Description: "Shop front at dusk"},
		{Name: "jingle.wav", Kind: "audio", Size: "12.9 MB"},
		{Name: "archive.zip", Kind: "other", Size: "220.4 MB", Description: "Old website export"},
	}
}

// Sample builds and validates the built-in demo library.
func Sample(opts Options) ([]library.Entry, error) {
	return Build(SampleNodes(), opts)
}

func photoSeries(prefix string, n int) []Node {
	nodes := make([]Node, 0, n)
	for i := 1; i <= n; i++ {
		nodes = append(nodes, Node{
			Name: fmt.Sprintf("%s-%02d.jpg", prefix, i),
			Kind: "image",
			Size: library.FormatSize(int64(1_500_000 + i*75_000)),
		})
	}
	return nodes
}
