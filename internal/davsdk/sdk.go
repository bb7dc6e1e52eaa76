package davsdk

import (
	"fmt"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imroc/req/v3"
)

const (
	capabilityCacheSize = 128
)

// DavSDK is a WebDAV client shared by every collection of one account.
type DavSDK struct {
	client *req.Client
	caps   *lru.Cache[string, *Capabilities]
}

// New creates a new DavSDK client
func New(cfg *DavSDKConfig) (*DavSDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// retries are driven by the scheduler, never by the transport
	client := req.C().
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetCommonRetryCount(0).
		SetCommonHeader(HeaderAccept, "*/*")

	if cfg.Token != "" {
		client.SetCommonBearerAuthToken(cfg.Token)
	} else if cfg.Username != "" {
		client.SetCommonBasicAuth(cfg.Username, cfg.Password)
	}

	caps, err := lru.New[string, *Capabilities](capabilityCacheSize)
	if err != nil {
		return nil, fmt.Errorf("sdk: capability cache: %w", err)
	}

	return &DavSDK{
		client: client,
		caps:   caps,
	}, nil
}

// Collection returns a handle for the collection at rawURL. The URL is
// normalized to end with a slash so member addresses resolve below it.
func (s *DavSDK) Collection(rawURL string) (*Collection, error) {
	if rawURL == "" {
		return nil, ErrNoCollectionURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if len(u.Path) == 0 || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}

	return &Collection{sdk: s, url: u}, nil
}

// Close releases idle connections
func (s *DavSDK) Close() {
	s.client.GetClient().CloseIdleConnections()
	s.caps.Purge()
}

// DefaultTimeout bounds a single request.
const DefaultTimeout = 2 * time.Minute
