package model

// Vehicle describes a vehicle returned by the vehicle-command API listing.
type Vehicle struct {
	ID         string `json:"vehicleId"`
	Make       string `json:"make,omitempty"`
	ModelName  string `json:"modelName,omitempty"`
	NickName   string `json:"nickName,omitempty"`
	Authorized bool   `json:"-"`
}

// FirstAuthorized returns the first vehicle flagged as authorized for this
// account, if any.
func FirstAuthorized(vehicles []Vehicle) (Vehicle, bool) {
	for _, v := range vehicles {
		if v.Authorized && v.ID != "" {
			return v, true
		}
	}
	return Vehicle{}, false
}
