package main

import (
	"io"
	"time"

	replica "replicamgr"
)

// demoReplica is a trivial Replica registered by the "reference" command so
// construct/destruct/scope/serialize have something real to dispatch
// against. It writes a short tag for whichever operation ran and always
// accepts inbound records, enough to exercise the wire path manually.
type demoReplica struct {
	netID replica.NetworkID
}

func (d *demoReplica) SendConstruction(out io.Writer, now time.Time, target replica.ParticipantID) (bool, error) {
	_, err := io.WriteString(out, "construct")
	return true, err
}

func (d *demoReplica) ReceiveConstruction(in io.Reader, now time.Time, netID replica.NetworkID, sender replica.ParticipantID) (replica.ReceiveDisposition, error) {
	return replica.Accept, nil
}

func (d *demoReplica) SendDestruction(out io.Writer, target replica.ParticipantID) (bool, error) {
	_, err := io.WriteString(out, "destruct")
	return true, err
}

func (d *demoReplica) ReceiveDestruction(in io.Reader, sender replica.ParticipantID) (bool, error) {
	return true, nil
}

func (d *demoReplica) SendScopeChange(out io.Writer, inScope bool, target replica.ParticipantID) (bool, error) {
	if inScope {
		_, err := io.WriteString(out, "scope-in")
		return true, err
	}
	_, err := io.WriteString(out, "scope-out")
	return true, err
}

func (d *demoReplica) ReceiveScopeChange(in io.Reader, sender replica.ParticipantID) (bool, error) {
	return true, nil
}

func (d *demoReplica) Serialize(out io.Writer, target replica.ParticipantID) (bool, error) {
	_, err := io.WriteString(out, "serialize")
	return true, err
}

func (d *demoReplica) Deserialize(in io.Reader, sender replica.ParticipantID) (bool, error) {
	return true, nil
}

func (d *demoReplica) NetworkID() replica.NetworkID { return d.netID }

var _ replica.Replica = (*demoReplica)(nil)
