package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/insight"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/notify"
	"github.com/picogrid/hexfleet/pkg/render"
	"github.com/picogrid/hexfleet/pkg/simulation"
	"github.com/picogrid/hexfleet/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a simulation and stream frames over a websocket",
	Long: `Run a simulation and serve it over HTTP:

  GET    /ws                          websocket stream of GeoJSON frames
  GET    /frame                       latest frame as GeoJSON
  GET    /events?n=50                 latest geofence transitions
  GET    /geofences                   geofences as JSON
  GET    /geofences/{id}/occupants    deliveries inside a geofence
  POST   /geofences                   create a geofence
  POST   /geofences/{id}/toggle       activate or deactivate a geofence
  DELETE /geofences/{id}              delete a geofence
  GET    /memberships                 geofence ids per delivery
  POST   /deliveries/{id}/{action}    dispatch, delay or resume a delivery
  PUT    /zoom?level=14               change the aggregation zoom
  POST   /deliveries/{id}/insight     select a delivery and request its assessment
  GET    /selection                   selected delivery and its assessment
  DELETE /selection                   clear the selection
  GET    /healthz                     engine settings and stream clients`,
	RunE: serveSimulation,
}

func init() {
	serveCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("console", false, "also print frames to the console")
	serveCmd.Flags().Duration("insight-timeout", 30*time.Second, "insight request timeout")
}

func serveSimulation(cmd *cobra.Command, _ []string) error {
	sim, simConfig, err := selectSimulation(cmd)
	if err != nil {
		return err
	}
	params, err := utils.PromptForParameters(simConfig.Parameters)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}
	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	engineCfg, err := engineConfig()
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	log := logger.WithPrefix("serve")
	stream := render.NewStream(log)
	renderers := render.Multi{stream}
	if console, _ := cmd.Flags().GetBool("console"); console {
		renderers = append(renderers, render.NewConsole(os.Stdout, render.NoColor(colorOff())))
	}

	events := notify.NewEventLog(os.Stdout, engineCfg.EventHistory, colorOff())

	timeout, _ := cmd.Flags().GetDuration("insight-timeout")
	client, profile, err := insightClient(timeout)
	if err != nil {
		return err
	}
	log.Debugf("Using insight profile %s", profile)
	selector := insight.NewSelector(client, func(r insight.Result) {
		if r.Response.Degraded() {
			log.Warnf("Insight for %s degraded: %s", r.EntityID, r.Response.ErrorKind)
			return
		}
		log.Infof("Insight for %s ready: risk %s", r.EntityID, r.Response.RiskLevel)
	})

	var current atomic.Pointer[engine.Engine]
	addr, _ := cmd.Flags().GetString("addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(stream, current.Load, events, selector),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopOnSignal(sim, cancel)
	go func() {
		if err := <-serverErr; err != nil {
			log.Errorf("Server failed: %v", err)
			_ = sim.Stop()
			cancel()
		}
	}()

	logger.LogSection(fmt.Sprintf("Serving %s on %s", sim.Name(), addr))
	runErr := sim.Run(ctx, simulation.Runtime{
		Engine:   engineCfg,
		Renderer: renderers,
		Notifier: events,
		Logger:   logger.WithPrefix(sim.Name()),
		OnStart:  current.Store,
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Shutdown: %v", err)
	}
	if err := stream.Close(); err != nil {
		log.Warnf("Closing stream: %v", err)
	}
	selector.Deselect()
	selector.Wait()

	printSummary(events.Summary())
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	return nil
}

type selectionStatus struct {
	EntityID   string            `json:"entity_id"`
	Generation uint64            `json:"generation,omitempty"`
	Pending    bool              `json:"pending"`
	Insight    *insight.Response `json:"insight,omitempty"`
	Discarded  int               `json:"discarded"`
}

type createGeofenceRequest struct {
	Name         string        `json:"name"`
	Center       models.LatLng `json:"center"`
	RadiusMeters float64       `json:"radius_m"`
	Type         string        `json:"type"`
}

// newServeMux routes the stream and the geofence endpoints. current returns
// the running engine, or nil before the simulation has started.
func newServeMux(stream *render.Stream, current func() *engine.Engine, events *notify.EventLog, selector *insight.Selector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", stream)

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		n := 50
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
				return
			}
			n = parsed
		}
		writeJSON(w, http.StatusOK, events.Recent(n))
	})

	withEngine := func(h func(http.ResponseWriter, *http.Request, *engine.Engine)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			eng := current()
			if eng == nil {
				http.Error(w, "simulation not started", http.StatusServiceUnavailable)
				return
			}
			h(w, r, eng)
		}
	}

	mux.HandleFunc("GET /frame", withEngine(func(w http.ResponseWriter, _ *http.Request, eng *engine.Engine) {
		data, err := render.MarshalFrame(eng.Frame())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	}))

	mux.HandleFunc("GET /geofences", withEngine(func(w http.ResponseWriter, _ *http.Request, eng *engine.Engine) {
		writeJSON(w, http.StatusOK, eng.Geofences())
	}))

	mux.HandleFunc("POST /geofences", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		var req createGeofenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
			return
		}
		t, err := models.ParseGeofenceType(req.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		f, err := eng.CreateGeofence(req.Name, req.Center, req.RadiusMeters, t)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	}))

	mux.HandleFunc("GET /geofences/{id}/occupants", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		ids, err := eng.Occupants(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"geofence": r.PathValue("id"), "deliveries": ids})
	}))

	mux.HandleFunc("POST /geofences/{id}/toggle", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		f, err := eng.ToggleGeofence(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}))

	mux.HandleFunc("DELETE /geofences/{id}", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		if _, err := eng.DeleteGeofence(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("GET /memberships", withEngine(func(w http.ResponseWriter, _ *http.Request, eng *engine.Engine) {
		writeJSON(w, http.StatusOK, eng.Memberships())
	}))

	actions := map[string]func(*engine.Engine, string) error{
		"dispatch": (*engine.Engine).Dispatch,
		"delay":    (*engine.Engine).MarkDelayed,
		"resume":   (*engine.Engine).Resume,
	}
	mux.HandleFunc("POST /deliveries/{id}/{action}", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		apply, ok := actions[r.PathValue("action")]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown action %q", r.PathValue("action")), http.StatusNotFound)
			return
		}
		id := r.PathValue("id")
		if err := apply(eng, id); err != nil {
			writeError(w, err)
			return
		}
		d, _ := eng.Frame().Delivery(id)
		writeJSON(w, http.StatusOK, d)
	}))

	mux.HandleFunc("PUT /zoom", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		zoom, err := strconv.ParseFloat(r.URL.Query().Get("level"), 64)
		if err != nil {
			http.Error(w, "level must be a number", http.StatusBadRequest)
			return
		}
		frame, err := eng.SetZoom(zoom)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"zoom": frame.Zoom, "resolution": frame.Resolution, "cells": len(frame.Cells)})
	}))

	mux.HandleFunc("POST /deliveries/{id}/insight", withEngine(func(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
		req, err := insightRequest(eng, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		gen := selector.Select(context.Background(), req)
		writeJSON(w, http.StatusAccepted, selectionStatus{EntityID: req.EntityID, Generation: gen, Pending: true})
	}))

	mux.HandleFunc("GET /selection", func(w http.ResponseWriter, _ *http.Request) {
		id, result := selector.Current()
		status := selectionStatus{EntityID: id, Pending: id != "" && result == nil, Discarded: selector.Discarded()}
		if result != nil {
			status.Generation = result.Generation
			status.Insight = &result.Response
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("DELETE /selection", func(w http.ResponseWriter, _ *http.Request) {
		selector.Deselect()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]interface{}{"clients": stream.Clients(), "running": false}
		if eng := current(); eng != nil {
			frame := eng.Frame()
			status["running"] = true
			status["seq"] = frame.Seq
			status["resolution"] = frame.Resolution
			status["config"] = eng.Config().String()
		}
		writeJSON(w, http.StatusOK, status)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
