// Package cms is a thin client for the institutional Moodle's REST web
// services, used to auto-enrol the user in the CMS courses that match
// their timetable.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	applog "ttcal/internal/log"
)

const restPath = "/webservice/rest/server.php"

// Client talks to one Moodle instance with a fixed web-service token.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// New builds a client for the Moodle at baseURL (scheme and host, no
// trailing path).
func New(baseURL, token string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		token:   token,
	}
}

// SiteInfo is the subset of core_webservice_get_site_info the enroller
// needs.
type SiteInfo struct {
	SiteName string `json:"sitename"`
	Username string `json:"username"`
	UserID   int    `json:"userid"`
}

// Course is one CMS course as returned by search and enrolment listing.
type Course struct {
	ID          int    `json:"id"`
	FullName    string `json:"fullname"`
	ShortName   string `json:"shortname"`
	DisplayName string `json:"displayname"`
}

type searchResult struct {
	Total   int      `json:"total"`
	Courses []Course `json:"courses"`
}

type enrolResult struct {
	Status   bool `json:"status"`
	Warnings []struct {
		Message string `json:"message"`
	} `json:"warnings"`
}

// moodleError is Moodle's uniform fault envelope; the REST endpoint
// answers 200 even for failures.
type moodleError struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

func (e *moodleError) Error() string {
	return fmt.Sprintf("moodle: %s (%s)", e.Message, e.ErrorCode)
}

// SiteInfo fetches the token owner's identity.
func (c *Client) SiteInfo(ctx context.Context) (*SiteInfo, error) {
	var info SiteInfo
	if err := c.call(ctx, "core_webservice_get_site_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// EnrolledCourses lists the courses the user is already enrolled in.
func (c *Client) EnrolledCourses(ctx context.Context, userID int) ([]Course, error) {
	params := url.Values{"userid": {strconv.Itoa(userID)}}
	var courses []Course
	if err := c.call(ctx, "core_enrol_get_users_courses", params, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// SearchCourses searches the course catalog by name.
func (c *Client) SearchCourses(ctx context.Context, query string) ([]Course, error) {
	params := url.Values{
		"criterianame":  {"search"},
		"criteriavalue": {query},
	}
	var res searchResult
	if err := c.call(ctx, "core_course_search_courses", params, &res); err != nil {
		return nil, err
	}
	return res.Courses, nil
}

// SelfEnrol self-enrols the token owner into the course.
func (c *Client) SelfEnrol(ctx context.Context, courseID int) error {
	params := url.Values{"courseid": {strconv.Itoa(courseID)}}
	var res enrolResult
	if err := c.call(ctx, "enrol_self_enrol_user", params, &res); err != nil {
		return err
	}
	if !res.Status {
		msg := "enrolment refused"
		if len(res.Warnings) > 0 {
			msg = res.Warnings[0].Message
		}
		return fmt.Errorf("self enrol course %d: %s", courseID, msg)
	}
	return nil
}

// call performs one web-service function call and decodes the response
// into out. Moodle fault envelopes are surfaced as errors.
func (c *Client) call(ctx context.Context, wsfunction string, params url.Values, out any) error {
	q := url.Values{
		"wstoken":            {c.token},
		"wsfunction":         {wsfunction},
		"moodlewsrestformat": {"json"},
	}
	for k, vv := range params {
		q[k] = vv
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+restPath+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", wsfunction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", wsfunction, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %s", wsfunction, resp.Status)
	}

	var fault moodleError
	if json.Unmarshal(body, &fault) == nil && fault.Exception != "" {
		applog.Warn("cms call rejected", "function", wsfunction, "code", fault.ErrorCode)
		return &fault
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", wsfunction, err)
	}
	return nil
}

// IsFault reports whether err is a Moodle fault with the given error
// code.
func IsFault(err error, code string) bool {
	var fault *moodleError
	return errors.As(err, &fault) && fault.ErrorCode == code
}
