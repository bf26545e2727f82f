package match

import "testing"

func TestTallyReplayIsStable(t *testing.T) {
	records := []RoundRecord{
		{Number: 1, Winner: OutcomeA},
		{Number: 2, Winner: OutcomeDraw},
		{Number: 3, Winner: OutcomeB},
		{Number: 4, Winner: OutcomeA},
	}
	// Replaying the same list any number of times yields the same counts.
	for i := 0; i < 3; i++ {
		a, b := Tally(records)
		if a != 2 || b != 1 {
			t.Fatalf("replay %d: tally = {A:%d B:%d}", i, a, b)
		}
	}
}

func TestDetermineMatchWinner(t *testing.T) {
	cases := []struct {
		name        string
		winners     []Outcome
		roundsToWin int
		want        Outcome
	}{
		{name: "undecided", winners: []Outcome{OutcomeA}, roundsToWin: 2, want: OutcomeNone},
		{name: "a reaches threshold", winners: []Outcome{OutcomeA, OutcomeB, OutcomeA}, roundsToWin: 2, want: OutcomeA},
		{name: "b reaches threshold", winners: []Outcome{OutcomeB, OutcomeB}, roundsToWin: 2, want: OutcomeB},
		{name: "draws count for nobody", winners: []Outcome{OutcomeDraw, OutcomeDraw, OutcomeDraw}, roundsToWin: 2, want: OutcomeNone},
		{name: "no records", winners: nil, roundsToWin: 2, want: OutcomeNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var records []RoundRecord
			for i, w := range tc.winners {
				records = append(records, RoundRecord{Number: i + 1, Winner: w})
			}
			if got := DetermineMatchWinner(records, tc.roundsToWin); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
