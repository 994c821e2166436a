package runtime

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	"github.com/drblury/pubsubflow/internal/topology"
)

// MessageHandlerRegistration binds a Watermill handler to a subscription.
// Messages returned by the handler are published to PublishURI, which must
// name a topic when set.
type MessageHandlerRegistration struct {
	Name            string
	SubscriptionURI string
	PublishURI      string
	Handler         message.HandlerFunc
}

type handlerRegistration struct {
	name         string
	subscription *topology.Subscription
	publishTopic *topology.Topic
	handler      message.HandlerFunc
	info         *HandlerInfo
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	return svc.RegisterHandler(cfg)
}

// RegisterHandler declares the handler's subscription (and publish topic) on
// the topology right away so they take part in dead-letter provisioning and
// setup. The handler starts consuming when the Service starts.
func (s *Service) RegisterHandler(cfg MessageHandlerRegistration) error {
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if cfg.SubscriptionURI == "" {
		return errspkg.ErrSubscriptionURIRequired
	}

	sub, err := s.topology.ResolveSubscription(cfg.SubscriptionURI)
	if err != nil {
		return fmt.Errorf("handler %s: %w", cfg.Name, err)
	}
	var publishTopic *topology.Topic
	if cfg.PublishURI != "" {
		publishTopic, err = s.topology.ResolveTopic(cfg.PublishURI)
		if err != nil {
			return fmt.Errorf("handler %s: %w", cfg.Name, err)
		}
	}

	info := &HandlerInfo{
		Name:            cfg.Name,
		SubscriptionURI: sub.URI(),
		Stats:           &HandlerStats{},
	}
	if publishTopic != nil {
		info.PublishURI = publishTopic.URI()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errspkg.ErrServiceStarted
	}
	for _, existing := range s.handlers {
		if existing.Name == cfg.Name {
			return fmt.Errorf("handler %s: %w", cfg.Name, errspkg.ErrHandlerExists)
		}
	}

	s.handlers = append(s.handlers, info)
	s.pending = append(s.pending, handlerRegistration{
		name:         cfg.Name,
		subscription: sub,
		publishTopic: publishTopic,
		handler:      wrapHandler(cfg.Handler, info, s.hooks),
		info:         info,
	})

	s.Logger.Debug("Registered handler", loggingpkg.LogFields{
		"handler":      cfg.Name,
		"subscription": sub.URI(),
		"publish":      info.PublishURI,
	})
	return nil
}

func (s *Service) addRouterHandler(reg handlerRegistration) error {
	subscriber, err := s.topology.Subscriber()
	if err != nil {
		return err
	}

	if reg.publishTopic == nil {
		s.router.AddNoPublisherHandler(
			reg.name,
			reg.subscription.SubscribeKey(),
			subscriber,
			func(msg *message.Message) error {
				_, err := reg.handler(msg)
				return err
			},
		)
		return nil
	}

	publisher, err := s.topology.Publisher()
	if err != nil {
		return err
	}
	s.router.AddHandler(
		reg.name,
		reg.subscription.SubscribeKey(),
		subscriber,
		reg.publishTopic.Name(),
		publisher,
		reg.handler,
	)
	return nil
}

func wrapHandler(handler message.HandlerFunc, info *HandlerInfo, hooks HandlerHooks) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		hctx := HandlerContext{
			HandlerName:     info.Name,
			SubscriptionURI: info.SubscriptionURI,
			MessageUUID:     msg.UUID,
			Metadata:        msg.Metadata,
			Context:         msg.Context(),
			StartedAt:       time.Now(),
		}
		info.Stats.onMessageStart()
		hooks.start(hctx)

		produced, err := handler(msg)

		hctx.Duration = time.Since(hctx.StartedAt)
		info.Stats.onMessageFinish(hctx.Duration, err)
		hooks.finish(hctx, err)
		return produced, err
	}
}
