// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a small business website from a seed URL, extracts
// business information from each page and merges it into one record per site.
//
// Usage:
//
//	sitecrawl crawl <url>
//	sitecrawl crawl <url> <url> --batch 2
//	sitecrawl history <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
