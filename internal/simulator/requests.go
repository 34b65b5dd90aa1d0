package simulator

// NetworkCreateRequest is the body of POST /network/.
type NetworkCreateRequest struct {
	CSI                string `json:"csi"`
	EmailDomain        string `json:"email_domain"`
	Hubs               int    `json:"hubs"`
	APsPerHub          int    `json:"aps_per_hub"`
	APHeartbeatSeconds int    `json:"ap_heartbeat_seconds"`
	RTsPerAP           int    `json:"rts_per_ap"`
	RTHeartbeatSeconds int    `json:"rt_heartbeat_seconds"`
}

// HubCreateRequest is the body of POST /network/{n}/hub/.
type HubCreateRequest struct {
	NumAPs             int `json:"num_aps"`
	NumRTsPerAP        int `json:"num_rts_per_ap"`
	HeartbeatSeconds   int `json:"heartbeat_seconds"`
	RTHeartbeatSeconds int `json:"rt_heartbeat_seconds"`
}

// APCreateRequest is the body of POST /network/{n}/hub/{h}/ap/.
type APCreateRequest struct {
	NumRTs             int `json:"num_rts"`
	HeartbeatSeconds   int `json:"heartbeat_seconds"`
	RTHeartbeatSeconds int `json:"rt_heartbeat_seconds"`
	AzimuthDeg         int `json:"azimuth_deg"`
}

// RTCreateRequest is the body of POST /network/{n}/hub/{h}/ap/{a}/rt/.
type RTCreateRequest struct {
	HeartbeatSeconds int `json:"heartbeat_seconds"`
}
