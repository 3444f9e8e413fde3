package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Grabber/internal/api"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/hbomb79/Grabber/internal/metrics"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/hbomb79/Grabber/web"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// grabberImpl represents the top-level object for the server, and is responsible
// for constructing the extractor and the HTTP gateway which exposes it.
type grabberImpl struct {
	config      GrabberConfig
	metrics     *metrics.Metrics
	restGateway RunnableService
}

func New(config GrabberConfig) (*grabberImpl, error) {
	log.Emit(logger.DEBUG, "Bootstrapping Grabber services using config: %#v\n", config)
	grabber := &grabberImpl{config: config, metrics: metrics.New()}

	ex, err := extractor.New(config.Extractor, grabber.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to construct extractor: %w", err)
	}
	log.Emit(logger.INFO, "Staging merged and converted downloads in %s\n", ex.StagingDir())

	gateway, err := api.NewRestGateway(&config.RestConfig, ex, grabber.metrics, web.Assets)
	if err != nil {
		return nil, fmt.Errorf("failed to construct rest gateway: %w", err)
	}
	grabber.restGateway = gateway

	return grabber, nil
}

// Run will start all of Grabbers services. This function will not return
// until Grabber is stopped, either by cancelling the provided context or
// by a service crashing.
func (grabber *grabberImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(fmt.Errorf("%s crashed: %w", label, err))
	}

	wg := &sync.WaitGroup{}
	grabber.spawnAsyncService(ctx, wg, grabber.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Grabber services spawned!\n")

	wg.Wait()
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

// spawnAsyncService will run the provided service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (grabber *grabberImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(serviceLabel, crashHandler)
}
