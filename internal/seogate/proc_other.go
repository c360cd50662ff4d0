//go:build !linux

package seogate

func processRSSBytes() (rssBytes uint64, ok bool) {
	return 0, false
}
