package tools

// Context carries per-call scope into tool handlers: the key of the
// agent invoking the tool and the opaque metadata the caller staged on
// the execution context.
type Context struct {
	agentKey string
	metadata map[string]any
}

func NewContext(agentKey string, metadata map[string]any) *Context {
	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	return &Context{agentKey: agentKey, metadata: copied}
}

func (c *Context) AgentKey() string {
	if c == nil {
		return ""
	}
	return c.agentKey
}

func (c *Context) Metadata() map[string]any {
	if c == nil {
		return nil
	}
	return c.metadata
}

func (c *Context) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.metadata[key]
	return v, ok
}
