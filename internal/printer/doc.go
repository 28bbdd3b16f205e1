// Package printer is the device-facing HTTP client.
//
// It performs three calls, each bounded by its own timeout (DefaultTimeout
// unless configured):
//
//	GET  http://{host}/                        reachability probe
//	POST http://{host}/api/v1/auth/request     {"application","user"} -> {"id","key"}
//	GET  http://{host}/api/v1/auth/check/{id}  -> {"message": "..."}
//
// Failures come back as *TransportError (network errors; Timeout is set on
// deadline expiry) or *ProtocolError (responses of the wrong shape). Both
// satisfy errors.Is against the authkey sentinels.
//
// When Config.Dial is set, every connection is dialed through it. The
// service uses this to reach printers over a tailnet.
package printer
