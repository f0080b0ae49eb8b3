package client

import (
	"net/url"

	"roombooking/pkg/model"
)

type RoomClient struct {
	httpClient *HttpClient
}

func NewRoomClient(baseUrl, token string) *RoomClient {
	c := NewHttpClient(baseUrl)
	c.Token = token
	return &RoomClient{
		httpClient: c,
	}
}

func (c *RoomClient) Create(room *model.Room) (*Response, error) {
	return c.httpClient.POST("/api/v1/rooms", room)
}

func (c *RoomClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/rooms/id/" + url.PathEscape(id))
}

func (c *RoomClient) List(query url.Values) (*Response, error) {
	path := "/api/v1/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.httpClient.GET(path)
}

func (c *RoomClient) SetStatus(id string, status model.RoomStatus) (*Response, error) {
	return c.httpClient.PATCH("/api/v1/rooms/id/"+url.PathEscape(id)+"/status", model.RoomStatusUpdate{Status: status})
}

func (c *RoomClient) DecodeRoom(resp *Response) (*model.Room, error) {
	return decodeData[*model.Room](resp, "room")
}

func (c *RoomClient) DecodeRooms(resp *Response) ([]*model.Room, *Metadata, error) {
	return decodePage[*model.Room](resp, "room")
}
