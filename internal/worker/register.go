package worker

import (
	"context"

	"github.com/cuemby/fleetsim/internal/metrics"
	"github.com/cuemby/fleetsim/internal/nms"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/google/uuid"
)

// handleAPRegister implements spec.md §4.3's three-call AP registration
// sequence: create node, register secret, register candidate. Any
// failure is terminal for this AP; success or failure is reported back
// on AP_REGISTER_RSP.
func (w *Worker) handleAPRegister(ctx context.Context, env proto.Envelope) {
	var body proto.APRegisterReqBody
	if err := proto.DecodePayload(env, proto.APRegisterReq, &body); err != nil {
		w.logger.Warn().Err(err).Msg("malformed ap_register_req")
		return
	}

	hubLat, hubLon := hubOrigin(*env.Address.Net, *env.Address.Hub)
	lat, lon := deriveAPLocation(hubLat, hubLon, *env.Address.AP)

	ap := &apNode{
		AUID:             body.AUID,
		HubAUID:          body.HubAUID,
		HeartbeatSeconds: body.HeartbeatSeconds,
		AzimuthDeg:       body.AzimuthDeg,
		Secret:           uuid.NewString(),
		Lat:              lat,
		Lon:              lon,
	}
	w.put(env.Address.Tag(), ap)

	success := w.registerAP(ctx, env.Address, ap)
	metrics.RegistrationsTotal.WithLabelValues("ap", outcomeLabel(success)).Inc()

	rsp, err := proto.Encode(env.Address, proto.APRegisterRsp, proto.APRegisterRspBody{
		Success:      success,
		RegisteredAt: nowRFC3339(),
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("encode ap_register_rsp")
		return
	}
	if err := w.conn.Send(rsp); err != nil {
		w.logger.Error().Err(err).Msg("send ap_register_rsp")
	}
}

func (w *Worker) registerAP(ctx context.Context, addr proto.Address, ap *apNode) bool {
	tempAUID := "T-" + ap.AUID
	cfg := nms.APNodeConfig{
		AUID:             ap.AUID,
		HubAUID:          ap.HubAUID,
		HeartbeatSeconds: ap.HeartbeatSeconds,
		AzimuthDeg:       ap.AzimuthDeg,
		Latitude:         ap.Lat,
		Longitude:        ap.Lon,
	}
	if err := w.nms.CreateAPNode(ctx, tempAUID, cfg); err != nil {
		w.logger.Warn().Err(err).Str("address", addr.Tag()).Msg("ap create-node failed")
		return false
	}
	if err := w.nms.RegisterAPSecret(ctx, ap.AUID, ap.Secret); err != nil {
		w.logger.Warn().Err(err).Str("address", addr.Tag()).Msg("ap register-secret failed")
		return false
	}
	if err := w.nms.RegisterAPCandidate(ctx, ap.AUID, ap.Secret, w.csi, ap.AUID); err != nil {
		w.logger.Warn().Err(err).Str("address", addr.Tag()).Msg("ap register-candidate failed")
		return false
	}
	return true
}

// handleRTRegister implements spec.md §4.3's two-call RT registration
// sequence: create node, then rt-registration. The RT's lat/lon is
// derived from its parent AP's location.
func (w *Worker) handleRTRegister(ctx context.Context, env proto.Envelope) {
	var body proto.RTRegisterReqBody
	if err := proto.DecodePayload(env, proto.RTRegisterReq, &body); err != nil {
		w.logger.Warn().Err(err).Msg("malformed rt_register_req")
		return
	}

	apAddr, _ := parentOf(env.Address)
	var apLat, apLon float64
	if parent, ok := w.get(apAddr.Tag()); ok {
		if ap, ok2 := parent.(*apNode); ok2 {
			apLat, apLon = ap.Lat, ap.Lon
		}
	}
	lat, lon := deriveRTLocation(apLat, apLon)

	rt := &rtNode{
		AUID:             body.AUID,
		APAUID:           body.APAUID,
		HeartbeatSeconds: body.HeartbeatSeconds,
		Lat:              lat,
		Lon:              lon,
	}
	w.put(env.Address.Tag(), rt)

	success := w.registerRT(ctx, env.Address, rt)
	metrics.RegistrationsTotal.WithLabelValues("rt", outcomeLabel(success)).Inc()

	rsp, err := proto.Encode(env.Address, proto.RTRegisterRsp, proto.RTRegisterRspBody{
		Success:      success,
		RegisteredAt: nowRFC3339(),
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("encode rt_register_rsp")
		return
	}
	if err := w.conn.Send(rsp); err != nil {
		w.logger.Error().Err(err).Msg("send rt_register_rsp")
	}
}

func (w *Worker) registerRT(ctx context.Context, addr proto.Address, rt *rtNode) bool {
	tempAUID := "T-" + rt.AUID
	cfg := nms.RTNodeConfig{
		AUID:             rt.AUID,
		APAUID:           rt.APAUID,
		HeartbeatSeconds: rt.HeartbeatSeconds,
		Latitude:         rt.Lat,
		Longitude:        rt.Lon,
	}
	if err := w.nms.CreateRTNode(ctx, tempAUID, cfg); err != nil {
		w.logger.Warn().Err(err).Str("address", addr.Tag()).Msg("rt create-node failed")
		return false
	}
	if err := w.nms.RegisterRT(ctx, tempAUID); err != nil {
		w.logger.Warn().Err(err).Str("address", addr.Tag()).Msg("rt-registration failed")
		return false
	}
	return true
}
