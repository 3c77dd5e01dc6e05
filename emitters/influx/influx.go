package influx

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	exporters "github.com/juvenn/rdkafka-exporters"
)

func NewV2Emitter(writeUrl string, bucket string, opts ...Option) (*influxEmitter, error) {
	em, err := newEmitter(writeUrl, opts...)
	if err != nil {
		return nil, err
	}
	em.v2 = true
	em.params.Set("bucket", bucket)
	em.writeUrl.RawQuery = em.params.Encode()
	return em, nil
}

func NewV1Emitter(writeUrl, database string, opts ...Option) (*influxEmitter, error) {
	em, err := newEmitter(writeUrl, opts...)
	if err != nil {
		return nil, err
	}
	em.params.Set("db", database)
	em.writeUrl.RawQuery = em.params.Encode()
	return em, nil
}

func newEmitter(writeUrl string, opts ...Option) (*influxEmitter, error) {
	u, err := url.Parse(writeUrl)
	if err != nil {
		return nil, err
	}
	em := &influxEmitter{
		writeUrl:  u,
		precision: "s",
		batchSize: 5000,
		params:    u.Query(),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(em)
	}
	if !validPrecisions[em.precision] {
		return nil, fmt.Errorf("Influx precision must be one of [ns,u,us,ms,s]")
	}
	if em.batchSize < 1 {
		return nil, fmt.Errorf("Influx batch size must be positive, got %d", em.batchSize)
	}
	em.params.Set("precision", em.precision)
	em.writeUrl.RawQuery = em.params.Encode()
	return em, nil
}

// Http based influx emitter that supports both v1 and v2 endpoints.
// See https://docs.influxdata.com/influxdb/v1.8/tools/api/#influxdb-20-api-compatibility-endpoints
type influxEmitter struct {
	writeUrl  *url.URL   // Influx url
	v2        bool       // v2 or not
	params    url.Values // Influx url params
	username  string
	password  string
	authtoken string // for v2 only
	precision string
	batchSize int
	http      *http.Client
}

func (em *influxEmitter) buildUrl() string {
	return em.writeUrl.String()
}

func (em *influxEmitter) Close() error {
	em.http.CloseIdleConnections()
	return nil
}

// Emit posts data points in batches of at most batchSize lines. A
// broker snapshot easily yields thousands of gauges.
func (em *influxEmitter) Emit(data ...exporters.Datum) error {
	for len(data) > 0 {
		n := min(len(data), em.batchSize)
		var lines strings.Builder
		for i := range data[:n] {
			lines.WriteString(data[i].EncodeInfluxLine(em.precision))
			lines.WriteByte('\n')
		}
		if err := em.request(strings.NewReader(lines.String())); err != nil {
			return fmt.Errorf("write %d points: %w", n, err)
		}
		data = data[n:]
	}
	return nil
}

func (em *influxEmitter) request(body io.Reader) error {
	req, err := http.NewRequest(http.MethodPost, em.buildUrl(), body)
	if err != nil {
		return err
	}
	if em.v2 {
		if em.authtoken != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Token %s", em.authtoken))
		} else if em.username != "" && em.password != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Token %s:%s", em.username, em.password))
		}
	} else if em.username != "" && em.password != "" {
		req.SetBasicAuth(em.username, em.password)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", "rdkafka-exporter")
	resp, err := em.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		bstr, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s %s %s", http.MethodPost, em.writeUrl, resp.Status, string(bstr))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type Option func(*influxEmitter)

// ### Common options

// Timestamp precision used to encode datum, can be one of [ns,u,us,ms,s], default to s.
func WithPrecision(p string) Option {
	return func(em *influxEmitter) {
		em.precision = p
	}
}

var (
	validPrecisions = map[string]bool{
		"ns": true,
		"u":  true, // same as us
		"us": true,
		"ms": true,
		"s":  true,
	}
)

// User pass authentication
func WithUserAuth(user, pass string) Option {
	return func(em *influxEmitter) {
		em.username = user
		em.password = pass
	}
}

// Http request timeout, default to 5s.
func WithRequestTimeout(du time.Duration) Option {
	return func(em *influxEmitter) {
		em.http.Timeout = du
	}
}

// Max points written per request, default to 5000.
func WithBatchSize(n int) Option {
	return func(em *influxEmitter) {
		em.batchSize = n
	}
}

// ### V2 options

// Influx API token, v2 only.
// See https://docs.influxdata.com/influxdb/v2.4/security/tokens/
func WithAuthToken(token string) Option {
	return func(em *influxEmitter) {
		em.authtoken = token
	}
}

// Org name, v2 only.
func WithOrg(org string) Option {
	return func(em *influxEmitter) {
		em.params.Set("org", org)
	}
}

// ### V1 options

// Retention policy, v1 only
func WithRetentionPolicy(rp string) Option {
	return func(em *influxEmitter) {
		em.params.Set("rp", rp)
	}
}
