package exporters

import "strings"

const (
	FilterModeDefault   = "default"
	FilterModeNone      = "none"
	FilterModeWhitelist = "whitelist"
)

// FilterConfig is the file form of the pipeline filter options.
//
//	filter:
//	  mode: whitelist
//	  whitelist: [rtt, consumer_lag]
type FilterConfig struct {
	Mode      string   `yaml:"mode" json:"mode"`
	Whitelist []string `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// Option resolves the config into a pipeline option. An empty mode means
// the default whitelist.
func (c FilterConfig) Option() (Option, error) {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", FilterModeDefault:
		if len(c.Whitelist) > 0 {
			return nil, configErrorf("whitelist entries given with filter mode %q", FilterModeDefault)
		}
		return WithFilter(DefaultWhitelist), nil
	case FilterModeNone:
		return WithoutFilter(), nil
	case FilterModeWhitelist:
		if len(c.Whitelist) == 0 {
			return nil, configErrorf("filter mode %q needs at least one name", FilterModeWhitelist)
		}
		return WithWhitelist(c.Whitelist...), nil
	}
	return nil, configErrorf("unknown filter mode %q", c.Mode)
}
