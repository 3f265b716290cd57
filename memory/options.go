package memory

import (
	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/model"
)

// OptionsFromConfig builds stream options from the [stream] section.
// Observer, Hub and Clock are left for the caller.
func OptionsFromConfig(c cfg.StreamConfiguration) (Options, error) {
	var protocol model.LocatorProtocol
	if c.Locators <= 1 {
		protocol = model.NewSingleLocatorProtocol(c.LocatorPrefix)
	} else {
		hashed, err := model.NewHashLocatorProtocol(c.LocatorPrefix, c.Locators)
		if err != nil {
			return Options{}, err
		}
		protocol = hashed
	}

	reducer, err := handling.ReducerByName(c.CompositePolicy)
	if err != nil {
		return Options{}, err
	}
	eligibility, err := handling.EligibilityByName(c.EligibilityPolicy, c.ReclaimRunning)
	if err != nil {
		return Options{}, err
	}

	return Options{
		LocatorProtocol:  protocol,
		Reducer:          reducer,
		Eligibility:      &eligibility,
		IDFilterCapacity: c.IDFilterCapacity,
	}, nil
}
