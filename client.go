package rangeserve

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/menmos/rangeserve/payload"
	"github.com/pkg/errors"
)

const userAgent = "rangeserve-go"

// Client provides an API to read videos from a rangeserve server.
type Client struct {
	httpClient *http.Client
	host       string
}

func NewClient(host string) *Client {
	return NewClientWithHTTP(host, &http.Client{})
}

// NewClientWithHTTP builds a client on top of an existing http.Client.
func NewClientWithHTTP(host string, httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		host:       strings.TrimSuffix(host, "/"),
	}
}

func videoPath(name string) string {
	return "/video?file=" + url.QueryEscape(name)
}

// low-level wrapper function to create a request to the server.
func (c *Client) makeRequest(method string, path string) (*http.Request, error) {
	request, err := http.NewRequest(method, c.host+path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s - failed to create request", method, path)
	}

	request.Header.Add("User-Agent", fmt.Sprintf("%s/%s", userAgent, Version))

	return request, nil
}

func (c *Client) doJSONRequest(req *http.Request, response interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s - request failed", req.Method, req.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "%s %s", req.Method, req.URL)
	}

	if !isStatusSuccess(resp.StatusCode) {
		return errors.New(fmt.Sprintf("%s %s - unexpected status '%s'", req.Method, req.URL, resp.Status))
	}

	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&response); err != nil {
		return errors.Wrapf(err, "%s %s - failed to deserialize response", req.Method, req.URL)
	}

	return nil
}

func (c *Client) readRange(name string, start int64, end int64) (io.ReadCloser, error) {
	if start > end {
		return nil, fmt.Errorf("invalid range for read request: %d-%d", start, end)
	}

	req, err := c.makeRequest("GET", videoPath(name))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Range", Range{Start: start, End: end}.Header())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "read request failed")
	}

	if !isPartialContent(resp.StatusCode) {
		resp.Body.Close()
		return nil, statusError(req, resp)
	}

	return resp.Body, nil
}

func statusError(req *http.Request, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s %s", req.Method, req.URL)
	case http.StatusRequestedRangeNotSatisfiable:
		return errors.Wrapf(ErrUnsatisfiableRange, "%s %s - %s", req.Method, req.URL, resp.Header.Get("Content-Range"))
	}
	return errors.New(fmt.Sprintf("%s %s - unexpected status '%s'", req.Method, req.URL, resp.Status))
}

// IsHealthy returns whether the server answers its health check.
func (c *Client) IsHealthy() (bool, error) {
	var response payload.MessageResponse

	req, err := c.makeRequest("GET", "/health")
	if err != nil {
		return false, err
	}

	if err := c.doJSONRequest(req, &response); err != nil {
		return false, errors.Wrap(err, "healthcheck failed")
	}

	return true, nil
}

// GetBody returns the body of the named video.
// If `readRange` is non-nil, GetBody will return that section of the video.
func (c *Client) GetBody(name string, readRange *Range) (io.ReadCloser, error) {
	if readRange != nil {
		return &rangeReader{Name: name, Client: c, RangeStart: readRange.Start, RangeEnd: readRange.End}, nil
	}

	req, err := c.makeRequest("GET", videoPath(name))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "read request failed")
	}

	if !isStatusSuccess(resp.StatusCode) {
		resp.Body.Close()
		return nil, statusError(req, resp)
	}

	return resp.Body, nil
}

// GetRange performs a single range request and returns the body with the Content-Range the server answered.
func (c *Client) GetRange(name string, header string) (io.ReadCloser, string, error) {
	req, err := c.makeRequest("GET", videoPath(name))
	if err != nil {
		return nil, "", err
	}
	req.Header.Add("Range", header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "range request failed")
	}

	if !isPartialContent(resp.StatusCode) {
		resp.Body.Close()
		return nil, "", statusError(req, resp)
	}

	return resp.Body, resp.Header.Get("Content-Range"), nil
}

// GetSize returns the size in bytes of the named video, read from a HEAD response.
func (c *Client) GetSize(name string) (int64, error) {
	req, err := c.makeRequest("HEAD", videoPath(name))
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "size request failed")
	}
	resp.Body.Close()

	if !isStatusSuccess(resp.StatusCode) {
		return 0, statusError(req, resp)
	}

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s - invalid Content-Length", req.Method, req.URL)
	}
	return size, nil
}

func (c *Client) GetMetadata(name string) (payload.VideoMeta, error) {
	req, err := c.makeRequest("GET", "/video/info?file="+url.QueryEscape(name))
	if err != nil {
		return payload.VideoMeta{}, err
	}

	var response payload.GetMetadataResponse
	if err := c.doJSONRequest(req, &response); err != nil {
		return payload.VideoMeta{}, err
	}

	if response.Metadata == nil {
		return payload.VideoMeta{}, errors.Wrapf(ErrNotFound, "get meta: video '%s'", name)
	}

	return *response.Metadata, nil
}
