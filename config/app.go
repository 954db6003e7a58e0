package config

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" default:"localhost:6379"`
	JWTSecret   string `env:"JWT_SECRET" default:"local_dev_secret"`
	Env         string `env:"APP_ENV" default:"dev"`

	// Daraja (M-Pesa) credentials for the STK push adapter.
	MpesaBaseURL        string `env:"MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	MpesaConsumerKey    string `env:"MPESA_CONSUMER_KEY"`
	MpesaConsumerSecret string `env:"MPESA_CONSUMER_SECRET"`
	MpesaShortCode      string `env:"MPESA_SHORT_CODE"`
	MpesaPasskey        string `env:"MPESA_PASSKEY"`
	MpesaCallbackURL    string `env:"MPESA_CALLBACK_URL"`

	// Mail API used by the payment-result notifier.
	NotifierURL string `env:"NOTIFIER_URL"`
	NotifierKey string `env:"NOTIFIER_API_KEY"`

	CallbackWorkers int `env:"CALLBACK_WORKERS" default:"2"`
}
