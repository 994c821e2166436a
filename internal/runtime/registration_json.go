package runtime

import (
	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/pubsubflow/internal/runtime/handlers"
)

// RegisterJSONHandler converts the typed JSON handler into a Watermill handler
// and registers it like RegisterHandler.
func RegisterJSONHandler[T any, O any](svc *Service, cfg handlerpkg.JSONHandlerRegistration[T, O]) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}

	wrapped, err := handlerpkg.BuildJSONHandler(cfg.Handler, svc.Logger)
	if err != nil {
		return err
	}

	return svc.RegisterHandler(MessageHandlerRegistration{
		Name:            cfg.Name,
		SubscriptionURI: cfg.SubscriptionURI,
		PublishURI:      cfg.PublishURI,
		Handler:         wrapped,
	})
}
