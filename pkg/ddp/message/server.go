package message

import "fmt"

// Added reports a document joining the client's view of a collection.
type Added struct {
	collection string
	id         string
	fields     Optional[map[string]any]
}

func NewAdded(collection, id string, fields Optional[map[string]any]) Added {
	return Added{collection: collection, id: id, fields: mapOptional(fields, copyFields)}
}

func (Added) Kind() Kind     { return KindAdded }
func (Added) serverMessage() {}

func (m Added) Collection() string               { return m.collection }
func (m Added) ID() string                       { return m.id }
func (m Added) Fields() Optional[map[string]any] { return mapOptional(m.fields, copyFields) }

// AddedBefore reports a document joining an ordered collection before
// another document, or at the end when before is nil.
type AddedBefore struct {
	collection string
	id         string
	before     any
	fields     Optional[map[string]any]
}

func NewAddedBefore(collection, id string, before any, fields Optional[map[string]any]) AddedBefore {
	return AddedBefore{collection: collection, id: id, before: before, fields: mapOptional(fields, copyFields)}
}

func (AddedBefore) Kind() Kind     { return KindAddedBefore }
func (AddedBefore) serverMessage() {}

func (m AddedBefore) Collection() string               { return m.collection }
func (m AddedBefore) ID() string                       { return m.id }
func (m AddedBefore) Before() any                      { return m.before }
func (m AddedBefore) Fields() Optional[map[string]any] { return mapOptional(m.fields, copyFields) }

// Changed reports new values for some fields of a document and the fields
// that were removed from it.
type Changed struct {
	collection string
	id         string
	cleared    Optional[[]string]
	fields     Optional[map[string]any]
}

func NewChanged(collection, id string, cleared Optional[[]string], fields Optional[map[string]any]) Changed {
	return Changed{
		collection: collection,
		id:         id,
		cleared:    mapOptional(cleared, copyStrings),
		fields:     mapOptional(fields, copyFields),
	}
}

func (Changed) Kind() Kind     { return KindChanged }
func (Changed) serverMessage() {}

func (m Changed) Collection() string               { return m.collection }
func (m Changed) ID() string                       { return m.id }
func (m Changed) Cleared() Optional[[]string]      { return mapOptional(m.cleared, copyStrings) }
func (m Changed) Fields() Optional[map[string]any] { return mapOptional(m.fields, copyFields) }

// Connected accepts a Connect and assigns the session token.
type Connected struct {
	session string
}

func NewConnected(session string) Connected {
	return Connected{session: session}
}

func (Connected) Kind() Kind     { return KindConnected }
func (Connected) serverMessage() {}

func (m Connected) Session() string { return m.session }

// Error reports a message the server could not process.
type Error struct {
	reason       string
	offendingPod map[string]any
}

// NewError builds an Error. A nil offendingPod is stored as an empty object.
func NewError(reason string, offendingPod map[string]any) Error {
	if offendingPod == nil {
		offendingPod = map[string]any{}
	}
	return Error{reason: reason, offendingPod: copyFields(offendingPod)}
}

func (Error) Kind() Kind     { return KindError }
func (Error) serverMessage() {}

func (m Error) Reason() string { return m.reason }

// OffendingPod is the wire form of the message that caused the error.
func (m Error) OffendingPod() map[string]any { return copyFields(m.offendingPod) }

// Failed rejects a Connect, proposing a version the server supports.
type Failed struct {
	version string
}

func NewFailed(version string) Failed {
	return Failed{version: version}
}

func (Failed) Kind() Kind     { return KindFailed }
func (Failed) serverMessage() {}

func (m Failed) Version() string { return m.version }

// MovedBefore reports a document moving within an ordered collection.
type MovedBefore struct {
	collection string
	id         string
	before     any
}

func NewMovedBefore(collection, id string, before any) MovedBefore {
	return MovedBefore{collection: collection, id: id, before: before}
}

func (MovedBefore) Kind() Kind     { return KindMovedBefore }
func (MovedBefore) serverMessage() {}

func (m MovedBefore) Collection() string { return m.collection }
func (m MovedBefore) ID() string         { return m.id }
func (m MovedBefore) Before() any        { return m.before }

// Nosub reports that a subscription ended or never started.
type Nosub struct {
	id  string
	err Optional[any]
}

func NewNosub(id string, err Optional[any]) Nosub {
	return Nosub{id: id, err: mapOptional(err, copyValue)}
}

func (Nosub) Kind() Kind     { return KindNosub }
func (Nosub) serverMessage() {}

func (m Nosub) ID() string           { return m.id }
func (m Nosub) Error() Optional[any] { return mapOptional(m.err, copyValue) }

// Ready reports that the initial data of some subscriptions has been sent.
type Ready struct {
	subs []string
}

func NewReady(subs []string) Ready {
	return Ready{subs: copyStrings(subs)}
}

func (Ready) Kind() Kind     { return KindReady }
func (Ready) serverMessage() {}

func (m Ready) Subs() []string { return copyStrings(m.subs) }

// Removed reports a document leaving the client's view of a collection.
type Removed struct {
	collection string
	id         string
}

func NewRemoved(collection, id string) Removed {
	return Removed{collection: collection, id: id}
}

func (Removed) Kind() Kind     { return KindRemoved }
func (Removed) serverMessage() {}

func (m Removed) Collection() string { return m.collection }
func (m Removed) ID() string         { return m.id }

// Result carries the outcome of a method call: exactly one of an error or
// a return value.
type Result struct {
	id     string
	err    Optional[any]
	result Optional[any]
}

// NewResult builds a Result. Exactly one of err and result must be present.
func NewResult(id string, err Optional[any], result Optional[any]) (Result, error) {
	if err.IsPresent() == result.IsPresent() {
		return Result{}, fmt.Errorf("%w: result %q needs exactly one of error or result", ErrInvalidMessage, id)
	}
	return Result{id: id, err: mapOptional(err, copyValue), result: mapOptional(result, copyValue)}, nil
}

// NewResultValue builds a successful Result.
func NewResultValue(id string, result any) Result {
	return Result{id: id, result: Some(copyValue(result))}
}

// NewResultError builds a failed Result.
func NewResultError(id string, err any) Result {
	return Result{id: id, err: Some(copyValue(err))}
}

func (Result) Kind() Kind     { return KindResult }
func (Result) serverMessage() {}

func (m Result) ID() string            { return m.id }
func (m Result) Error() Optional[any]  { return mapOptional(m.err, copyValue) }
func (m Result) Result() Optional[any] { return mapOptional(m.result, copyValue) }

// Updated reports that the writes of some methods are reflected in the data
// sent to the client.
type Updated struct {
	methods []string
}

func NewUpdated(methods []string) Updated {
	return Updated{methods: copyStrings(methods)}
}

func (Updated) Kind() Kind     { return KindUpdated }
func (Updated) serverMessage() {}

func (m Updated) Methods() []string { return copyStrings(m.methods) }

// Ping asks the peer to answer with a Pong carrying the same id.
type Ping struct {
	id Optional[string]
}

func NewPing(id Optional[string]) Ping {
	return Ping{id: id}
}

func (Ping) Kind() Kind     { return KindPing }
func (Ping) clientMessage() {}
func (Ping) serverMessage() {}

func (m Ping) ID() Optional[string] { return m.id }

// Pong answers a Ping.
type Pong struct {
	id Optional[string]
}

func NewPong(id Optional[string]) Pong {
	return Pong{id: id}
}

func (Pong) Kind() Kind     { return KindPong }
func (Pong) clientMessage() {}
func (Pong) serverMessage() {}

func (m Pong) ID() Optional[string] { return m.id }
