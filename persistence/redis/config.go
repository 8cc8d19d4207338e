package redis

type Config struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
	// CompletionTTL bounds how long a completed task token is remembered.
	CompletionTTL int
}
