package match

// Tally replays the round records and counts wins per seat. The tally is
// never stored or incremented in place, so replaying the same record list
// always yields the same counts.
func Tally(records []RoundRecord) (a, b int) {
	for _, r := range records {
		switch r.Winner {
		case OutcomeA:
			a++
		case OutcomeB:
			b++
		}
	}
	return a, b
}

// DetermineMatchWinner returns the seat that has reached the rounds-to-win
// threshold, or OutcomeNone while the match is still undecided. Draws count
// for neither seat.
func DetermineMatchWinner(records []RoundRecord, roundsToWin int) Outcome {
	a, b := Tally(records)
	if a >= roundsToWin {
		return OutcomeA
	}
	if b >= roundsToWin {
		return OutcomeB
	}
	return OutcomeNone
}
