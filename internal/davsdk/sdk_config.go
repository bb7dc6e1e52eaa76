package davsdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/openmined/davsync/internal/version"
)

const (
	HeaderAccept      = "Accept"
	HeaderContentType = "Content-Type"
	HeaderDepth       = "Depth"
	HeaderETag        = "ETag"
	HeaderIfMatch     = "If-Match"
	HeaderIfNoneMatch = "If-None-Match"
	HeaderDAV         = "DAV"
	HeaderAllow       = "Allow"
)

var UserAgent = fmt.Sprintf("%s/%s (%s; %s; %s)", version.AppName, version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// DavSDKConfig is the configuration for the DavSDK
type DavSDKConfig struct {
	Username string        // Username enables basic auth
	Password string        // Password for basic auth
	Token    string        // Token enables bearer auth and wins over basic auth
	Timeout  time.Duration // Timeout per request, DefaultTimeout if zero
}

func (c *DavSDKConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("sdk: nil config")
	}
	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("sdk: password set without username")
	}
	return nil
}
