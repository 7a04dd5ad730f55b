// Package util provides common utility functions.
package util

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// maxSlugLen bounds directory and file name components so deep
// artist/title strings cannot exceed filesystem limits.
const maxSlugLen = 60

// Matches characters that are unsafe in file names on any supported platform.
var unsafeCharRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SlugName converts a title or artist name into a filesystem-safe name
// component. Unsafe characters collapse to a single underscore, the
// result is trimmed and capped at 60 runes, and an empty result falls
// back to "untitled".
//
// Examples:
//
//	`one/two`       → "one_two"
//	`  "quoted"  `  → "quoted"
//	``              → "untitled"
func SlugName(value string) string {
	cleaned := unsafeCharRe.ReplaceAllString(value, "_")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "untitled"
	}

	runes := []rune(cleaned)
	if len(runes) > maxSlugLen {
		cleaned = strings.TrimRight(string(runes[:maxSlugLen]), "_ .")
		if cleaned == "" {
			return "untitled"
		}
	}
	return cleaned
}

// ExtensionFromURL extracts the file extension from an image URL path.
// URLs without an extension default to ".jpg", the dominant format on
// the image host.
func ExtensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	if ext := path.Ext(parsed.Path); ext != "" {
		return ext
	}
	return ".jpg"
}

// ItemDirName builds the deterministic per-item directory name:
// {itemID}_{slug(artist or title)}. The artist wins when present so
// collections group naturally by creator.
func ItemDirName(itemID int64, artist, title string) string {
	name := artist
	if strings.TrimSpace(name) == "" {
		name = title
	}
	return fmt.Sprintf("%d_%s", itemID, SlugName(name))
}

// PageFileName builds the deterministic per-page file name:
// {page:02d}_{slug(title)}{ext}. The zero-padded page index keeps
// pages sorted lexically.
func PageFileName(page int, title, ext string) string {
	return fmt.Sprintf("%02d_%s%s", page, SlugName(title), ext)
}
