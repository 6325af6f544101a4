package command

import "context"

// Wire values of the vehicle-command API.
const (
	StatusSuccess          = "SUCCESS"
	CommandCompleted       = "COMPLETED"
	CommandPendingResponse = "PENDINGRESPONSE"
)

// Body is the decoded JSON body of a submission or confirmation response.
type Body struct {
	Status        string `json:"status,omitempty"`
	CommandStatus string `json:"commandStatus,omitempty"`
	CommandID     string `json:"commandId,omitempty"`
}

// Response is what the vehicle-command API returned for one call. Body is nil
// when the response carried no decodable body. Raw keeps the body bytes for
// diagnostics.
type Response struct {
	StatusCode int
	Body       *Body
	Raw        []byte
}

// VehicleAPI is the capability pair the engine needs per intent. Non-2xx
// status codes are reported through Response; only transport failures are
// returned as errors.
type VehicleAPI interface {
	Submit(ctx context.Context, intent Intent, vehicleID string) (Response, error)
	Poll(ctx context.Context, intent Intent, vehicleID, commandID string) (Response, error)
}
