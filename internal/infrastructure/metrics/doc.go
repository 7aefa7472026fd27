// Package metrics exposes LPWAN Core's Prometheus metrics.
//
// A Metrics value implements network.Recorder, model.ErrorCounter,
// mailbox.Recorder and uplink.Recorder, so it can be handed straight to the
// fan-out engine, the model CountingTracer, the mailbox and the uplink
// ingestor:
//
//	m := metrics.New(cfg.Metrics.Namespace)
//	engine.SetRecorder(m)
//	mb.SetRecorder(m)
//	tracer := model.Tracers{model.LogTracer{Logger: log}, model.CountingTracer{Counter: m}}
//	http.Handle(cfg.Metrics.Path, m.Handler())
package metrics
