package filter

import "github.com/maxpert/recordstream/model"

type tagSet map[model.NamedValue]struct{}

func newTagSet(tags []model.NamedValue) tagSet {
	s := make(tagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// containsAll reports whether every pair of sub is in s.
func (s tagSet) containsAll(sub tagSet) bool {
	for t := range sub {
		if _, ok := s[t]; !ok {
			return false
		}
	}
	return true
}

func (s tagSet) intersects(o tagSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for t := range small {
		if _, ok := large[t]; ok {
			return true
		}
	}
	return false
}

// MatchTags compares a query tag set against a record's tags. Tags are
// compared as name/value pairs. An empty side never matches. The zero
// strategy means model.DefaultTagMatchStrategy.
//
//	Any/Any: at least one pair in common
//	Any/All: every target pair is in findSet
//	All/Any: every findSet pair is in target
//	All/All: same pairs on both sides
func MatchTags(findSet, target []model.NamedValue, strategy model.TagMatchStrategy) (bool, error) {
	strategy = strategy.OrDefault()
	if err := validateScope(strategy.ScopeOfFindSet); err != nil {
		return false, err
	}
	if err := validateScope(strategy.ScopeOfTarget); err != nil {
		return false, err
	}
	if len(findSet) == 0 || len(target) == 0 {
		return false, nil
	}

	find := newTagSet(findSet)
	tgt := newTagSet(target)

	switch {
	case strategy.ScopeOfFindSet == model.TagMatchScopeAny && strategy.ScopeOfTarget == model.TagMatchScopeAny:
		return find.intersects(tgt), nil
	case strategy.ScopeOfFindSet == model.TagMatchScopeAny && strategy.ScopeOfTarget == model.TagMatchScopeAll:
		return find.containsAll(tgt), nil
	case strategy.ScopeOfFindSet == model.TagMatchScopeAll && strategy.ScopeOfTarget == model.TagMatchScopeAny:
		return tgt.containsAll(find), nil
	default:
		return len(find) == len(tgt) && tgt.containsAll(find), nil
	}
}

func validateScope(scope model.TagMatchScope) error {
	if scope != model.TagMatchScopeAny && scope != model.TagMatchScopeAll {
		return &model.NotSupportedError{What: "tag match scope", Value: scope}
	}
	return nil
}
