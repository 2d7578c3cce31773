package round

import (
	"errors"
	"fmt"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
)

// DriveLockstep advances a set of in-process sessions — one per cluster
// member, all running the same protocol — until every one yields an
// Output, delivering each round's traffic directly: a broadcast round's
// content goes to every party (sender included), a unicast round's
// per-recipient content goes to its recipient. It is the in-process
// counterpart of the VM's own round loop, used by the preprocessing
// producer driver and by protocol tests.
//
// Because every session runs the same protocol, they advance in lockstep:
// each delivery pass is followed by one Finalize per party, and the loop
// ends when all of them are terminal.
func DriveLockstep[F field.Prime](cluster party.IDSlice, sessions map[party.ID]Session[F]) (map[party.ID]interface{}, error) {
	sorted := cluster.Sorted()
	results := make(map[party.ID]interface{}, len(sorted))
	for len(results) < len(sorted) {
		// A session can be terminal before any round runs (a zero-step
		// protocol finalizing at construction time).
		for _, id := range sorted {
			if _, done := results[id]; done {
				continue
			}
			if out, ok := sessions[id].(*Output[F]); ok {
				results[id] = out.Result
			}
		}
		if len(results) == len(sorted) {
			break
		}
		for _, from := range sorted {
			if _, done := results[from]; done {
				continue
			}
			sess := sessions[from]
			if br, ok := sess.(BroadcastRound[F]); ok {
				if content := br.BroadcastContent(); content != nil {
					for _, to := range sorted {
						recv, ok := sessions[to].(BroadcastRound[F])
						if !ok {
							return nil, fmt.Errorf("round: party %s cannot store a broadcast message this round", to)
						}
						if err := recv.StoreBroadcastMessage(Message{From: from, Content: content, Broadcast: true}); err != nil {
							return nil, fmt.Errorf("round: delivering broadcast %s->%s: %w", from, to, err)
						}
					}
					continue
				}
			}
			ur, ok := sess.(UnicastRound[F])
			if !ok {
				return nil, errors.New("round: session emits neither broadcast nor unicast content")
			}
			for _, to := range sorted {
				if err := sessions[to].StoreMessage(Message{From: from, To: to, Content: ur.UnicastContent(to)}); err != nil {
					return nil, fmt.Errorf("round: delivering unicast %s->%s: %w", from, to, err)
				}
			}
		}
		for _, id := range sorted {
			if _, done := results[id]; done {
				continue
			}
			next, err := sessions[id].Finalize(nil)
			if err != nil {
				return nil, fmt.Errorf("round: finalizing for %s: %w", id, err)
			}
			if out, ok := next.(*Output[F]); ok {
				results[id] = out.Result
				continue
			}
			sessions[id] = next
		}
	}
	return results, nil
}
