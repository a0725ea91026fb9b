// package audio turns an audio resource into mono float samples and partitions them into chunks.
//
// ResourceDecoder reads local files or fetches URLs, then sniffs the container: RIFF/WAVE goes
// through go-audio/wav and MPEG Layer III through go-mp3. Both are downmixed to mono and
// resampled to the requested rate. Chunks splits a sample slice into consecutive windows
// without overlap or padding.
package audio
