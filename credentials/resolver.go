package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/datachat-app/google-auth/logging"
)

// Resolver probes its sources in order and accepts the first one that
// yields a complete credential set. Resolution happens once per process;
// the result is cached and never mutated afterwards.
type Resolver struct {
	logger  *logging.Logger
	sources []Source

	once sync.Once
	cred *ClientCredential
	err  error
}

// NewResolver builds a resolver over an explicit, ordered source list.
// The order is a deployment decision made at construction, never an ambient
// lookup at call time.
func NewResolver(logger *logging.Logger, sources ...Source) *Resolver {
	return &Resolver{
		logger:  logger,
		sources: sources,
	}
}

// Resolve returns the cached credential, probing the sources on first use.
// When every source fails it returns a *ConfigurationError naming each
// probed source; this is fatal for the process.
func (r *Resolver) Resolve() (*ClientCredential, error) {
	r.once.Do(func() {
		r.cred, r.err = r.resolve()
	})
	return r.cred, r.err
}

func (r *Resolver) resolve() (*ClientCredential, error) {
	if len(r.sources) == 0 {
		return nil, &ConfigurationError{Attempts: []string{"no sources configured"}}
	}

	var attempts []string

	for _, source := range r.sources {
		cred, err := source.Load()
		if err == nil {
			r.logger.Log(logging.LevelInfo, "Resolved client credential from source %s (client id %s)",
				source.Name(), redactClientID(cred.ClientID))
			return cred, nil
		}

		if errors.Is(err, ErrSourceNotPresent) {
			r.logger.Log(logging.LevelDebug, "Credential source %s is not present", source.Name())
			attempts = append(attempts, fmt.Sprintf("%s: not present", source.Name()))
			continue
		}

		// Present but unusable. The whole source is rejected; partial
		// values never carry over.
		r.logger.Log(logging.LevelWarn, "Credential source %s rejected: %s", source.Name(), err.Error())
		attempts = append(attempts, fmt.Sprintf("%s: %s", source.Name(), err.Error()))
	}

	return nil, &ConfigurationError{Attempts: attempts}
}

// redactClientID keeps enough of the id to correlate with the Google Cloud
// console without logging the full value.
func redactClientID(clientID string) string {
	if len(clientID) <= 12 {
		return "***"
	}
	return clientID[:8] + "..." + clientID[len(clientID)-8:]
}
