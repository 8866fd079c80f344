package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldSocials lists the site's social media profiles as "platform:handle".
const FieldSocials = "socials"

// socialPlatform matches profile links of one platform. The first submatch
// of each pattern is the handle.
type socialPlatform struct {
	name     string
	patterns []*regexp.Regexp
}

// socialPlatforms are checked in order; the first matching platform wins.
// Post, share and intent links are not profiles and never match.
var socialPlatforms = []socialPlatform{
	{"facebook", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?(?:facebook|fb)\.com/(?:pages/[^/]+/)?([A-Za-z0-9.]+)/?(?:[?#].*)?$`),
	}},
	{"instagram", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.)?(?:instagram\.com|instagr\.am)/([A-Za-z0-9_.]+)/?(?:[?#].*)?$`),
	}},
	{"x", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/([A-Za-z0-9_]{1,15})/?(?:[?#].*)?$`),
	}},
	{"linkedin", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in)/([A-Za-z0-9_-]+)/?(?:[?#].*)?$`),
	}},
	{"youtube", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/(?:channel/|c/|user/)?@?([A-Za-z0-9_-]+)/?(?:[?#].*)?$`),
	}},
	{"tiktok", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.)?tiktok\.com/@([A-Za-z0-9_.]+)/?(?:[?#].*)?$`),
	}},
	{"pinterest", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:[a-z]{2,3}\.)?pinterest\.[a-z.]+/([A-Za-z0-9_]+)/?(?:[?#].*)?$`),
	}},
	{"yelp", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?yelp\.[a-z.]+/biz/([A-Za-z0-9_-]+)/?(?:[?#].*)?$`),
	}},
	{"whatsapp", []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:www\.)?wa\.me/(\d+)/?(?:[?#].*)?$`),
	}},
}

// reservedHandles are path segments that look like handles but are site pages.
var reservedHandles = map[string]bool{
	"share": true, "sharer": true, "sharer.php": true, "intent": true,
	"home": true, "login": true, "watch": true, "explore": true,
	"p": true, "reel": true, "hashtag": true, "search": true,
	"dialog": true, "plugins": true, "tr": true,
}

// socialProfiles returns the profile links of doc as "platform:handle",
// in document order and deduplicated. Handles are lowercased.
func socialProfiles(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if profile, ok := matchSocial(strings.TrimSpace(href)); ok && !seen[profile] {
			seen[profile] = true
			out = append(out, profile)
		}
	})
	return out
}

func matchSocial(href string) (string, bool) {
	for _, p := range socialPlatforms {
		for _, re := range p.patterns {
			m := re.FindStringSubmatch(href)
			if m == nil {
				continue
			}
			handle := strings.ToLower(m[1])
			if reservedHandles[handle] {
				return "", false
			}
			return p.name + ":" + handle, true
		}
	}
	return "", false
}
