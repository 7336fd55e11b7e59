package wikipedia

import (
	"strings"

	"golang.org/x/net/html"
)

// InfoboxImage returns the absolute URL of the first image inside the page's
// infobox or taxobox table, or "" when the page has none.
func InfoboxImage(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", err
	}

	box := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" &&
			(hasClass(n, "infobox") || hasClass(n, "biota") || hasClass(n, "taxobox"))
	})
	if box == nil {
		return "", nil
	}

	img := findFirst(box, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "img" && attr(n, "src") != ""
	})
	if img == nil {
		return "", nil
	}

	return absolute(attr(img, "src")), nil
}

// absolute turns protocol-relative Wikimedia URLs into https ones
func absolute(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

func hasClass(n *html.Node, className string) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
