package message

// Connect opens a DDP session, proposing a protocol version.
type Connect struct {
	version string
	support Optional[[]string]
	session Optional[string]
}

// NewConnect builds a Connect message.
//
// The preferred version is implicit, so it is removed from support. If
// nothing else remains, support is stored as absent.
func NewConnect(version string, support Optional[[]string], session Optional[string]) Connect {
	if versions, ok := support.Get(); ok {
		others := make([]string, 0, len(versions))
		for _, v := range versions {
			if v != version {
				others = append(others, v)
			}
		}
		if len(others) == 0 {
			support = None[[]string]()
		} else {
			support = Some(others)
		}
	}

	return Connect{version: version, support: support, session: session}
}

func (Connect) Kind() Kind     { return KindConnect }
func (Connect) clientMessage() {}

// Version is the protocol version the client prefers.
func (m Connect) Version() string { return m.version }

// Support lists the other protocol versions the client accepts.
func (m Connect) Support() Optional[[]string] { return mapOptional(m.support, copyStrings) }

// Session is the token of a previous session the client wants to resume.
func (m Connect) Session() Optional[string] { return m.session }

// Method invokes a remote procedure.
type Method struct {
	id     string
	method string
	params []any
}

// NewMethod builds a Method message. Nil params are sent as an empty list.
func NewMethod(id, method string, params []any) Method {
	if params == nil {
		params = []any{}
	}
	return Method{id: id, method: method, params: copyList(params)}
}

func (Method) Kind() Kind     { return KindMethod }
func (Method) clientMessage() {}

func (m Method) ID() string     { return m.id }
func (m Method) Method() string { return m.method }
func (m Method) Params() []any  { return copyList(m.params) }

// Sub requests a subscription to a named record set.
type Sub struct {
	id     string
	name   string
	params Optional[[]any]
}

func NewSub(id, name string, params Optional[[]any]) Sub {
	return Sub{id: id, name: name, params: mapOptional(params, copyList)}
}

func (Sub) Kind() Kind     { return KindSub }
func (Sub) clientMessage() {}

func (m Sub) ID() string              { return m.id }
func (m Sub) Name() string            { return m.name }
func (m Sub) Params() Optional[[]any] { return mapOptional(m.params, copyList) }

// Unsub cancels a subscription.
type Unsub struct {
	id string
}

func NewUnsub(id string) Unsub {
	return Unsub{id: id}
}

func (Unsub) Kind() Kind     { return KindUnsub }
func (Unsub) clientMessage() {}

func (m Unsub) ID() string { return m.id }
