package aggregate

import (
	"sort"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Fold returns rec updated with page and its extraction result.
func Fold(rec model.AggregatedRecord, page model.Page, res model.Extraction) model.AggregatedRecord {
	out := rec.Clone()
	foldStats(&out.Stats, page)

	names := make([]string, 0, len(res.Fields))
	for name := range res.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := res.Fields[name]
		if field.IsList() {
			out.Lists[name] = mergeList(out.Lists[name], field.Values, page)
			continue
		}
		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}
		candidate := model.FieldValue{
			Value:      value,
			Confidence: res.FieldConfidence(name),
			Source:     page.URL,
			Seq:        page.Seq,
		}
		if cur, ok := out.Fields[name]; !ok || cur.Value == "" || replaces(cur, candidate) {
			out.Fields[name] = candidate
		}
	}
	return out
}

// FoldAll folds every terminal page in discovery order.
func FoldAll(pages []model.Page) model.AggregatedRecord {
	ordered := make([]model.Page, 0, len(pages))
	for _, p := range pages {
		if p.State.IsTerminal() {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Seq < ordered[j].Seq
	})

	rec := model.NewAggregatedRecord()
	for _, p := range ordered {
		var res model.Extraction
		if p.Extraction != nil {
			res = *p.Extraction
		}
		rec = Fold(rec, p, res)
	}
	return rec
}

// replaces reports whether candidate should take the place of cur.
func replaces(cur, candidate model.FieldValue) bool {
	if cur.Confidence != nil && candidate.Confidence != nil && *cur.Confidence != *candidate.Confidence {
		return *candidate.Confidence > *cur.Confidence
	}
	return candidate.Seq < cur.Seq
}

func mergeList(items []model.ListItem, values []string, page model.Page) []model.ListItem {
	index := make(map[string]int, len(items))
	for i, item := range items {
		index[item.Value] = i
	}
	for pos, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if i, ok := index[v]; ok {
			if page.Seq < items[i].Seq {
				items[i].Source = page.URL
				items[i].Seq = page.Seq
				items[i].Pos = pos
			}
			continue
		}
		index[v] = len(items)
		items = append(items, model.ListItem{Value: v, Source: page.URL, Seq: page.Seq, Pos: pos})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Seq != items[j].Seq {
			return items[i].Seq < items[j].Seq
		}
		return items[i].Pos < items[j].Pos
	})
	if items == nil {
		items = []model.ListItem{}
	}
	return items
}

func foldStats(s *model.RecordStats, page model.Page) {
	s.PagesProcessed++
	s.TotalProcessingTime += page.ProcessingTime
	switch page.State {
	case model.StateSuccess:
		s.PagesSucceeded++
	case model.StateRedirected:
		s.PagesSucceeded++
		s.PagesRedirected++
	case model.StateFailed:
		s.PagesFailed++
	case model.StateTimeout:
		s.PagesTimedOut++
	}
}
