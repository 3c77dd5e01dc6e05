package exporters

import "strings"

// Filter decides whether a single path segment justifies keeping the
// metric it belongs to.
type Filter interface {
	Match(segment string) bool
}

type FilterFunc func(segment string) bool

func (fn FilterFunc) Match(segment string) bool {
	return fn(segment)
}

// Whitelist matches segments that are members of the set.
type Whitelist map[string]struct{}

func NewWhitelist(names ...string) Whitelist {
	wl := make(Whitelist, len(names))
	for _, name := range names {
		wl[name] = struct{}{}
	}
	return wl
}

func (wl Whitelist) Match(segment string) bool {
	_, ok := wl[segment]
	return ok
}

// DefaultWhitelist holds the broker and topic-partition statistics
// forwarded when no filter is configured.
var DefaultWhitelist = NewWhitelist(
	// broker
	"outbuf_cnt",
	"outbuf_msg_cnt",
	"waitresp_cnt",
	"waitresp_msg_cnt",
	"tx",
	"txbytes",
	"txerrs",
	"txretries",
	"req_timeouts",
	"rx",
	"rxbytes",
	"rxerrs",
	"rxcorriderrs",
	"rxpartial",
	"rtt",
	"throttle",

	// topic partition
	"msgq_cnt",
	"msgq_bytes",
	"xmit_msgq_cnt",
	"xmit_msgq_bytes",
	"fetchq_cnt",
	"fetchq_size",
	"query_offset",
	"next_offset",
	"app_offset",
	"stored_offset",
	"committed_offset",
	"eof_offset",
	"lo_offset",
	"hi_offset",
	"consumer_lag",
	"txmsgs",
	"txbytes",
	"msgs",
	"rx_ver_drops",
)

// Segments that never carry a useful metric: per-broker partition
// listings and the internal unassigned partition.
var blacklist = map[string]struct{}{
	"toppars": {},
	"-1":      {},
}

// Blacklisted reports whether a segment excludes its metric regardless
// of any filter.
func Blacklisted(segment string) bool {
	_, ok := blacklist[segment]
	return ok
}

// FilterKeys keeps the entries of flat whose key has at least one
// segment matched by f and no blacklisted segment.
func FilterKeys(flat *FlatMetrics, f Filter) *FlatMetrics {
	kept := NewFlatMetrics()
	flat.Each(func(key string, v Value) {
		if keepKey(key, f) {
			kept.Set(key, v)
		}
	})
	return kept
}

func keepKey(key string, f Filter) bool {
	segments := strings.Split(key, Separator)
	for _, s := range segments {
		if Blacklisted(s) {
			return false
		}
	}
	for _, s := range segments {
		if f.Match(s) {
			return true
		}
	}
	return false
}
