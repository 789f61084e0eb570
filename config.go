package treechat

import (
	"github.com/treechat/treechat/stores"
)

// Config holds configuration for chat sessions
type Config struct {
	ModelName    string
	SystemPrompt string
	Store        stores.MessageStore
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	// Create a default SQLite store
	defaultStore, err := stores.NewSQLiteStoreDefault()
	if err != nil {
		// If we can't create the default store, panic or use a nil store
		// In production, you might want to handle this more gracefully
		panic("Failed to create default SQLite store: " + err.Error())
	}

	return &Config{
		ModelName:    "gemini-2.0-flash",
		SystemPrompt: "You are a helpful assistant.",
		Store:        defaultStore,
	}
}

// WithModelName sets the model name for the configuration
func (c *Config) WithModelName(modelName string) *Config {
	c.ModelName = modelName
	return c
}

// WithSystemPrompt sets the system prompt for the configuration
func (c *Config) WithSystemPrompt(prompt string) *Config {
	c.SystemPrompt = prompt
	return c
}

// WithStore sets the message store for the configuration. A previously
// configured store is closed before being replaced.
func (c *Config) WithStore(store stores.MessageStore) *Config {
	if c.Store != nil {
		c.Store.Close()
	}
	c.Store = store
	return c
}

// WithSQLiteStore sets a SQLite store with the specified database path
func (c *Config) WithSQLiteStore(dbPath string) *Config {
	store, err := stores.NewSQLiteStoreSimple(dbPath)
	if err != nil {
		panic("Failed to create SQLite store: " + err.Error())
	}
	return c.WithStore(store)
}

// WithPostgresStore sets a PostgreSQL store with the specified connection parameters
func (c *Config) WithPostgresStore(host, user, password, dbname string, port int) *Config {
	store, err := stores.NewPostgresStoreDefault(host, user, password, dbname, port)
	if err != nil {
		panic("Failed to create PostgreSQL store: " + err.Error())
	}
	return c.WithStore(store)
}
