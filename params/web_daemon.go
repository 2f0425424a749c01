package params

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// MaxBodyBytes limits POST /localize bodies.
	MaxBodyBytes int64

	// Token, if set, must be sent as a Bearer token (or api_token query param) to POST /localize.
	Token string `json:"-"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		MaxBodyBytes:   64 << 20,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir: "",
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		MaxBodyBytes: 1 << 20,
	}
}
