package sensor

// Registry holds the host-fed providers, one per source and channel.
type Registry struct {
	providers map[Source]map[Channel]*PushProvider
}

// NewRegistry creates a PushProvider for every source and channel pair and
// registers it with r.
func NewRegistry(r *Resolver, sources []Source, channels []Channel) *Registry {
	g := &Registry{providers: map[Source]map[Channel]*PushProvider{}}
	for _, s := range sources {
		g.providers[s] = map[Channel]*PushProvider{}
		for _, ch := range channels {
			p := NewPushProvider(s, ch)
			g.providers[s][ch] = p
			r.Register(p)
		}
	}
	return g
}

func (g *Registry) Provider(s Source, ch Channel) (*PushProvider, bool) {
	p, ok := g.providers[s][ch]
	return p, ok
}
