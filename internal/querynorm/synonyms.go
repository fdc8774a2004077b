package querynorm

import "strings"

// synonym maps a stem found in the query to extra retrieval terms.
type synonym struct {
	stem  string
	terms []string
}

// domainSynonyms is ordered so Expand output is deterministic.
var domainSynonyms = []synonym{
	{stem: "мастик", terms: []string{"мастика", "мастики", "мастикой", "герметик"}},
	{stem: "праймер", terms: []string{"праймер", "грунтовка", "битумный праймер"}},
	{stem: "грунтовк", terms: []string{"грунтовка", "праймер"}},
	{stem: "битум", terms: []string{"битум", "битумный", "битумная"}},
	{stem: "эмульс", terms: []string{"эмульсия", "битумная эмульсия"}},
	{stem: "гидроизол", terms: []string{"гидроизоляция", "гидроизоляционный", "изоляция"}},
	{stem: "кровл", terms: []string{"кровля", "кровельный", "крыша"}},
	{stem: "лент", terms: []string{"лента", "герметизирующая лента"}},
	{stem: "расход", terms: []string{"расход", "норма расхода", "кг/м2"}},
	{stem: "температур", terms: []string{"температура", "теплостойкость", "морозостойкость"}},
	{stem: "mastic", terms: []string{"mastic", "мастика"}},
	{stem: "bitumen", terms: []string{"bitumen", "битум"}},
	{stem: "primer", terms: []string{"primer", "праймер"}},
}

// Expand returns the basic form of q followed by domain synonyms for any stem it contains.
// The result is meant for embedding only and is never shown to users.
func Expand(q string) string {
	base := Basic(q)
	if base == "" {
		return ""
	}

	parts := []string{base}
	seen := map[string]struct{}{}

	for _, s := range domainSynonyms {
		if !strings.Contains(base, s.stem) {
			continue
		}

		for _, term := range s.terms {
			if strings.Contains(base, term) {
				continue
			}

			if _, ok := seen[term]; ok {
				continue
			}

			seen[term] = struct{}{}
			parts = append(parts, term)
		}
	}

	return strings.Join(parts, " ")
}
