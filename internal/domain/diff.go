package domain

// NewAds returns the ads of current whose ID is absent from prev, in the
// order they were discovered. An empty snapshot yields every current ad:
// that is the seeding run, the caller decides whether to notify it.
func NewAds(current []Ad, prev Snapshot) []Ad {
	fresh := make([]Ad, 0, len(current))
	for _, ad := range current {
		if prev.Has(ad.ID) {
			continue
		}
		fresh = append(fresh, ad)
	}
	return fresh
}
