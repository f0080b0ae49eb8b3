package client

import (
	"fmt"
	"net/url"
	"time"

	"roombooking/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl, token string) *BookingClient {
	c := NewHttpClient(baseUrl)
	c.Token = token
	return &BookingClient{
		httpClient: c,
	}
}

// WithToken returns a client for the same service acting as another actor.
func (c *BookingClient) WithToken(token string) *BookingClient {
	return NewBookingClient(c.httpClient.BaseURL, token)
}

func (c *BookingClient) WaitForHealthy(maxWait time.Duration) error {
	return c.httpClient.WaitForHealthy(maxWait)
}

func (c *BookingClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings", body)
}

func (c *BookingClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/api/v1/bookings", rawBody)
}

func (c *BookingClient) CreateIdempotent(body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/bookings", body, map[string]string{"Idempotency-Key": key})
}

func (c *BookingClient) List(query url.Values) (*Response, error) {
	path := "/api/v1/bookings"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.httpClient.GET(path)
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/bookings/id/" + url.PathEscape(id))
}

func (c *BookingClient) Edit(id string, start, end time.Time) (*Response, error) {
	body := model.EditBookingRequest{StartTime: start, EndTime: end}
	return c.httpClient.PATCH("/api/v1/bookings/id/"+url.PathEscape(id), body)
}

func (c *BookingClient) Approve(id string) (*Response, error) {
	return c.transition(id, "approve")
}

func (c *BookingClient) Reject(id string) (*Response, error) {
	return c.transition(id, "reject")
}

func (c *BookingClient) Cancel(id string) (*Response, error) {
	return c.transition(id, "cancel")
}

func (c *BookingClient) transition(id, action string) (*Response, error) {
	path := fmt.Sprintf("/api/v1/bookings/id/%s/%s", url.PathEscape(id), action)
	return c.httpClient.POST(path, nil)
}

func (c *BookingClient) Availability(resourceID string, start, end time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("resource_id", resourceID)
	q.Set("start_time", start.Format(time.RFC3339Nano))
	q.Set("end_time", end.Format(time.RFC3339Nano))
	return c.httpClient.GET("/api/v1/bookings/availability?" + q.Encode())
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	return decodeData[*model.Booking](resp, "booking")
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, *Metadata, error) {
	return decodePage[*model.Booking](resp, "booking")
}

func (c *BookingClient) DecodeApproval(resp *Response) (*model.ApprovalResult, error) {
	return decodeData[*model.ApprovalResult](resp, "approval")
}

func (c *BookingClient) DecodeAvailability(resp *Response) (*model.Availability, error) {
	return decodeData[*model.Availability](resp, "availability")
}
