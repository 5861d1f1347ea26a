package clock

// Elapsed checks if intervalSec passed since lastCheckSec.
// A lastCheckSec of 0 means "never checked" and always reports true.
func Elapsed(c Clock, lastCheckSec int64, intervalSec int64) bool {
	return lastCheckSec == 0 || c.SecondsSincePowerOn()-lastCheckSec > intervalSec
}

// ElapsedAndUpdate works like Elapsed and stores the current time into
// lastCheckSec if the interval passed.
func ElapsedAndUpdate(c Clock, lastCheckSec *int64, intervalSec int64) bool {
	currentSec := c.SecondsSincePowerOn()

	if *lastCheckSec == 0 || currentSec-*lastCheckSec > intervalSec {
		*lastCheckSec = currentSec
		return true
	}

	return false
}
