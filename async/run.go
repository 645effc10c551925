package async

// Run executes f in a goroutine and returns a buffered channel that will
// receive its result, so the caller can race it against other events without
// leaking the goroutine.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}
